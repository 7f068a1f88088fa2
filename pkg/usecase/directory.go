package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/service/graph"
	"github.com/secmon-lab/standup/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	photoConcurrency = 3
	photoBatchDelay  = 100 * time.Millisecond
)

// directory resolves message senders to team members and caches resolved users.
// Lookup failures degrade to an uncached member built from the sender fields.
type directory struct {
	graph       graph.Service
	emailDomain string
	photos      bool

	mu      sync.RWMutex
	members map[string]*model.TeamMember
}

// sender is a user seen on a message
type sender struct {
	id   string
	name string
}

func newDirectory(gs graph.Service, emailDomain string, photos bool) *directory {
	return &directory{
		graph:       gs,
		emailDomain: emailDomain,
		photos:      photos,
		members:     make(map[string]*model.TeamMember),
	}
}

func (d *directory) cached(id string) (*model.TeamMember, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.members[id]
	if !ok {
		return nil, false
	}
	member := *m
	return &member, true
}

func (d *directory) store(members ...*model.TeamMember) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range members {
		d.members[m.ID] = m
	}
}

func (d *directory) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.members = make(map[string]*model.TeamMember)
}

func (d *directory) size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members)
}

// lookup returns the member for one sender, fetching it when not cached.
// Only resolved users are cached, so a failed lookup is retried on the next call.
func (d *directory) lookup(ctx context.Context, token string, s sender) *model.TeamMember {
	if m, ok := d.cached(s.id); ok {
		return m
	}

	fallback := model.FallbackMember(s.id, s.name, d.emailDomain)
	if token == "" {
		return fallback
	}

	user, err := d.graph.GetUser(ctx, token, s.id)
	if err != nil {
		logging.From(ctx).Warn("failed to get user, using sender fields",
			"user_id", s.id,
			"error", err.Error(),
		)
		return fallback
	}

	member := d.toMember(user, s)
	if d.photos {
		d.attachPhoto(ctx, token, member)
	}
	d.store(member)
	return member
}

// prefetch resolves every uncached sender with batched requests.
// Senders the batch could not resolve stay uncached for lookup to retry one by one.
func (d *directory) prefetch(ctx context.Context, token string, senders []sender) {
	if token == "" {
		return
	}

	var missing []sender
	for _, s := range senders {
		if _, ok := d.cached(s.id); !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return
	}

	ids := make([]string, len(missing))
	for i, s := range missing {
		ids[i] = s.id
	}

	users, err := d.graph.BatchGetUsers(ctx, token, ids)
	if err != nil {
		logging.From(ctx).Warn("failed to batch get users, resolving individually",
			"count", len(ids),
			"error", err.Error(),
		)
		return
	}

	var resolved []*model.TeamMember
	for _, s := range missing {
		if user, ok := users[s.id]; ok {
			resolved = append(resolved, d.toMember(user, s))
		}
	}
	if len(resolved) == 0 {
		return
	}

	if d.photos {
		d.attachPhotos(ctx, token, resolved)
	}
	d.store(resolved...)
}

func (d *directory) toMember(user *graph.User, s sender) *model.TeamMember {
	name := user.DisplayName
	if name == "" {
		name = s.name
	}
	email := user.Email()
	if email == "" {
		email = model.SynthesizeEmail(name, d.emailDomain)
	}

	return &model.TeamMember{
		ID:         s.id,
		Name:       name,
		Email:      email,
		AvatarURL:  model.AvatarURL(name),
		JobTitle:   user.JobTitle,
		Department: user.Department,
	}
}

// attachPhotos downloads photos photoConcurrency at a time, pausing between batches
func (d *directory) attachPhotos(ctx context.Context, token string, members []*model.TeamMember) {
	for start := 0; start < len(members); start += photoConcurrency {
		if start > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(photoBatchDelay):
			}
		}

		end := min(start+photoConcurrency, len(members))
		var eg errgroup.Group
		eg.SetLimit(photoConcurrency)
		for _, m := range members[start:end] {
			eg.Go(func() error {
				d.attachPhoto(ctx, token, m)
				return nil
			})
		}
		_ = eg.Wait()
	}
}

func (d *directory) attachPhoto(ctx context.Context, token string, m *model.TeamMember) {
	photo, err := d.graph.GetUserPhoto(ctx, token, m.ID)
	if err != nil {
		if !errors.Is(err, graph.ErrNotFound) {
			logging.From(ctx).Debug("failed to get user photo", "user_id", m.ID, "error", err.Error())
		}
		m.AvatarURL = model.PhotoFallbackURL(m.Name)
		return
	}
	m.AvatarURL = "data:" + photo.ContentType + ";base64," + base64.StdEncoding.EncodeToString(photo.Data)
}
