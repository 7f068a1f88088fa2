package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/metrics"
	"github.com/secmon-lab/standup/pkg/service/parser"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

// ParserUseCase turns chat messages into standup updates with resolved members
type ParserUseCase struct {
	parser   *parser.Parser
	dir      *directory
	location *time.Location
}

func newParserUseCase(p *parser.Parser, dir *directory, loc *time.Location) *ParserUseCase {
	if loc == nil {
		loc = time.UTC
	}
	return &ParserUseCase{
		parser:   p,
		dir:      dir,
		location: loc,
	}
}

// ParseMessage parses one message. It returns nil for system messages and for
// messages that are not standup reports.
func (uc *ParserUseCase) ParseMessage(ctx context.Context, token string, msg *model.ChatMessage) *model.StandupUpdate {
	fields, ok := uc.extract(ctx, msg)
	if !ok {
		return nil
	}

	s := msg.Sender()
	member := uc.dir.lookup(ctx, token, sender{id: s.ID, name: s.DisplayName})
	metrics.UpdatesParsedTotal.Inc()
	return uc.newUpdate(msg, fields, member)
}

// ParseMessages parses msgs in order, dropping those that yield no update.
// Senders are resolved in batches before parsing.
func (uc *ParserUseCase) ParseMessages(ctx context.Context, token string, msgs []*model.ChatMessage) []*model.StandupUpdate {
	type parsed struct {
		msg    *model.ChatMessage
		fields *parser.Fields
	}

	var (
		candidates []parsed
		senders    []sender
		seen       = make(map[string]struct{})
	)
	for _, msg := range msgs {
		fields, ok := uc.extract(ctx, msg)
		if !ok {
			continue
		}
		candidates = append(candidates, parsed{msg: msg, fields: fields})

		s := msg.Sender()
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		senders = append(senders, sender{id: s.ID, name: s.DisplayName})
	}

	uc.dir.prefetch(ctx, token, senders)

	// one lookup per sender within a call, even when it falls back
	resolved := make(map[string]*model.TeamMember, len(senders))
	updates := make([]*model.StandupUpdate, 0, len(candidates))
	for _, c := range candidates {
		s := c.msg.Sender()
		member, ok := resolved[s.ID]
		if !ok {
			member = uc.dir.lookup(ctx, token, sender{id: s.ID, name: s.DisplayName})
			resolved[s.ID] = member
		}
		updates = append(updates, uc.newUpdate(c.msg, c.fields, member))
	}
	metrics.UpdatesParsedTotal.Add(float64(len(updates)))

	logging.From(ctx).Debug("parsed messages",
		"messages", len(msgs),
		"updates", len(updates),
		"members", len(senders),
	)
	return updates
}

// ClearUserCache drops every resolved member
func (uc *ParserUseCase) ClearUserCache() {
	uc.dir.clear()
}

// CachedUser returns a resolved member without fetching
func (uc *ParserUseCase) CachedUser(id string) (*model.TeamMember, bool) {
	return uc.dir.cached(id)
}

func (uc *ParserUseCase) extract(ctx context.Context, msg *model.ChatMessage) (*parser.Fields, bool) {
	if !msg.IsUserPost() {
		metrics.MessagesSkippedTotal.WithLabelValues("system").Inc()
		return nil, false
	}

	var (
		fields *parser.Fields
		ok     bool
	)
	if strings.EqualFold(msg.Body.ContentType, "text") {
		fields, ok = uc.parser.Parse(msg.Body.Content)
	} else {
		fields, ok = uc.parser.ParseHTML(msg.Body.Content)
	}
	if !ok {
		metrics.MessagesSkippedTotal.WithLabelValues("not_standup").Inc()
		return nil, false
	}
	return fields, true
}

func (uc *ParserUseCase) newUpdate(msg *model.ChatMessage, f *parser.Fields, member *model.TeamMember) *model.StandupUpdate {
	return &model.StandupUpdate{
		ID:                 msg.ID,
		Member:             member,
		Project:            f.Project,
		Date:               model.StandupDate(msg.CreatedDateTime),
		Time:               model.StandupTime(msg.CreatedDateTime, uc.location),
		Accomplishments:    f.Accomplishments,
		TasksCompleted:     f.TasksCompleted,
		CarryForward:       f.CarryForward,
		CarryForwardReason: f.CarryForwardReason,
		Plans:              f.Plans,
		RawMessage:         f.Text,
		Reactions:          msg.Reactions,
		CreatedAt:          msg.CreatedDateTime,
	}
}
