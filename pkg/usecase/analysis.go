package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/metrics"
	"github.com/secmon-lab/standup/pkg/utils/async"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

//go:embed prompt/analysis_system.md
var analysisSystemPromptTmpl string

var analysisSystemPrompt = template.Must(template.New("analysis_system").Parse(analysisSystemPromptTmpl))

const (
	// DefaultAnalysisDays is the length of the range analyzed when none is given
	DefaultAnalysisDays = 7

	highDuplicationRepeats = 3
)

// AnalysisUseCase builds analysis reports of a chat's standup updates
type AnalysisUseCase struct {
	standup   *StandupUseCase
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	now       func() time.Time
}

func NewAnalysisUseCase(standup *StandupUseCase, repo interfaces.Repository, llmClient gollem.LLMClient, now func() time.Time) *AnalysisUseCase {
	if now == nil {
		now = time.Now
	}
	return &AnalysisUseCase{
		standup:   standup,
		repo:      repo,
		llmClient: llmClient,
		now:       now,
	}
}

type AnalyzeInput struct {
	ChatID      string `json:"chatId"`
	AccessToken string `json:"accessToken" masq:"secret"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

type AnalysisResult struct {
	Response *model.CombinedAnalysisResponse `json:"data"`
	Usage    model.AnalysisUsage             `json:"usage"`
	ReportID model.ReportID                  `json:"reportId"`
	Source   model.ReportSource              `json:"source"`
}

// Analyze fetches the whole chat, keeps the updates inside the date range and builds a report.
// The report is saved in the background.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, input AnalyzeInput) (*AnalysisResult, error) {
	if input.ChatID == "" {
		return nil, goerr.Wrap(ErrMissingChatID, "chatId is required")
	}
	if input.AccessToken == "" {
		return nil, goerr.Wrap(ErrMissingToken, "accessToken is required", goerr.V(ChatIDKey, input.ChatID))
	}

	from, to, err := uc.dateRange(input.From, input.To)
	if err != nil {
		return nil, err
	}

	source := model.ReportSourceLocal
	if uc.llmClient != nil {
		source = model.ReportSourceLLM
	}
	started := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues(string(source)).Observe(time.Since(started).Seconds())
	}()

	page, err := uc.standup.FetchAll(ctx, input.ChatID, input.AccessToken, 0)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues(string(source), "error").Inc()
		return nil, err
	}
	updates := model.FilterOptions{From: from, To: to}.Apply(page.Updates)
	slices.SortStableFunc(updates, func(a, b *model.StandupUpdate) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	members, err := uc.standup.ListMembers(ctx, input.ChatID, input.AccessToken)
	if err != nil {
		logging.From(ctx).Warn("failed to list chat members",
			"chat_id", input.ChatID,
			"error", err.Error(),
		)
	}
	if len(members) == 0 {
		members = senders(updates)
	}

	var report *model.StandupAnalysisReport
	if uc.llmClient != nil {
		report, err = uc.analyzeWithLLM(ctx, from, to, updates)
	} else {
		report = analyzeLocally(from, to, updates)
		err = report.Validate()
	}
	if err != nil {
		result := "error"
		if errors.Is(err, ErrUpstreamContract) {
			result = "contract_violation"
		}
		metrics.AnalysisTotal.WithLabelValues(string(source), result).Inc()
		return nil, err
	}
	metrics.AnalysisTotal.WithLabelValues(string(source), "success").Inc()

	stored := &model.Report{
		ID:     model.NewReportID(),
		ChatID: input.ChatID,
		From:   from,
		To:     to,
		Source: source,
		Usage: model.AnalysisUsage{
			MessageCount: len(page.Updates),
			StandupCount: len(updates),
			MemberCount:  len(members),
		},
		Response: &model.CombinedAnalysisResponse{
			StandupAnalysis: report,
			AllChatMembers:  memberInfos(members),
		},
		CreatedAt: uc.now(),
	}

	if uc.repo != nil {
		async.Dispatch(ctx, "save-report", func(ctx context.Context) error {
			if err := uc.repo.Report().Put(ctx, stored); err != nil {
				return goerr.Wrap(err, "failed to save report", goerr.V(ReportIDKey, stored.ID))
			}
			return nil
		})
	}

	return &AnalysisResult{
		Response: stored.Response,
		Usage:    stored.Usage,
		ReportID: stored.ID,
		Source:   source,
	}, nil
}

// GetReport returns a stored report
func (uc *AnalysisUseCase) GetReport(ctx context.Context, id model.ReportID) (*model.Report, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidInput, err.Error(), goerr.V(ReportIDKey, id))
	}

	report, err := uc.repo.Report().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrReportNotFound, "report not found", goerr.V(ReportIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get report", goerr.V(ReportIDKey, id))
	}
	return report, nil
}

// ListReports returns stored reports of a chat, newest first
func (uc *AnalysisUseCase) ListReports(ctx context.Context, chatID string, limit int) ([]*model.Report, error) {
	if chatID == "" {
		return nil, goerr.Wrap(ErrMissingChatID, "chat ID is required to list reports")
	}

	reports, err := uc.repo.Report().ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list reports", goerr.V(ChatIDKey, chatID))
	}
	return reports, nil
}

// dateRange fills missing bounds with the last DefaultAnalysisDays days ending today
func (uc *AnalysisUseCase) dateRange(from, to string) (string, string, error) {
	if to == "" {
		to = model.StandupDate(uc.now())
	}
	toDate, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return "", "", goerr.Wrap(model.ErrInvalidDateRange, "invalid to date", goerr.V(model.DateKey, to))
	}

	if from == "" {
		from = toDate.AddDate(0, 0, -(DefaultAnalysisDays - 1)).Format(model.DateLayout)
	}
	if _, err := time.Parse(model.DateLayout, from); err != nil {
		return "", "", goerr.Wrap(model.ErrInvalidDateRange, "invalid from date", goerr.V(model.DateKey, from))
	}

	if from > to {
		return "", "", goerr.Wrap(model.ErrInvalidDateRange, "from is after to",
			goerr.V("from", from),
			goerr.V("to", to))
	}
	return from, to, nil
}

// llmInputMessage is one update as sent to the LLM
type llmInputMessage struct {
	MessageID    string `json:"messageId"`
	EmployeeName string `json:"employeeName"`
	CreatedDate  string `json:"createdDate"`
	ProjectTeam  string `json:"projectTeam,omitempty"`
	Text         string `json:"text"`
}

func (uc *AnalysisUseCase) analyzeWithLLM(ctx context.Context, from, to string, updates []*model.StandupUpdate) (*model.StandupAnalysisReport, error) {
	var buf bytes.Buffer
	if err := analysisSystemPrompt.Execute(&buf, map[string]string{"From": from, "To": to}); err != nil {
		return nil, goerr.Wrap(err, "failed to render analysis prompt")
	}

	input := make([]llmInputMessage, len(updates))
	for i, u := range updates {
		input[i] = llmInputMessage{
			MessageID:    u.ID,
			EmployeeName: memberName(u.Member),
			CreatedDate:  u.Date,
			Text:         u.RawMessage,
		}
		if u.Project != model.UnknownProject {
			input[i].ProjectTeam = u.Project
		}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal analysis input")
	}

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(analysisReportSchema()),
		gollem.WithSessionSystemPrompt(buf.String()),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session for analysis")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(string(raw)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate analysis")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.Wrap(ErrUpstreamContract, "analysis returned empty result")
	}

	var report model.StandupAnalysisReport
	if err := json.Unmarshal([]byte(resp.Texts[0]), &report); err != nil {
		return nil, goerr.Wrap(ErrUpstreamContract, "failed to parse analysis JSON",
			goerr.V("response", resp.Texts[0]),
			goerr.V("error", err.Error()))
	}
	if err := report.Validate(); err != nil {
		return nil, goerr.Wrap(ErrUpstreamContract, "analysis JSON failed validation",
			goerr.V("response", resp.Texts[0]),
			goerr.V("error", err.Error()))
	}

	logging.From(ctx).Info("analysis generated",
		"from", from,
		"to", to,
		"updates", len(updates),
		"reports", len(report.DailyUpdateReports),
	)
	return &report, nil
}

// analyzeLocally derives a report from the parsed updates alone. updates must be in posting order.
func analyzeLocally(from, to string, updates []*model.StandupUpdate) *model.StandupAnalysisReport {
	report := &model.StandupAnalysisReport{
		AnalysisDateRange:  model.DateRange{From: from, To: to},
		DailyUpdateReports: make([]*model.DailyUpdateReport, 0, len(updates)),
		DuplicationSummary: model.DuplicationSummary{
			Overall: model.DuplicationLow,
			Details: []*model.DuplicationDetail{},
		},
	}
	if len(updates) == 0 {
		report.Message = "No standup updates found between " + from + " and " + to
		return report
	}

	type streak struct {
		detail  *model.DuplicationDetail
		last    string
		current int
	}
	streaks := make(map[string]*streak)

	for _, u := range updates {
		name := memberName(u.Member)
		key := memberKey(u.Member)

		st, ok := streaks[key]
		if !ok {
			st = &streak{detail: &model.DuplicationDetail{EmployeeName: name}}
			streaks[key] = st
			report.DuplicationSummary.Details = append(report.DuplicationSummary.Details, st.detail)
		}

		fingerprint := accomplishmentFingerprint(u.Accomplishments)
		similar := ok && fingerprint != "" && fingerprint == st.last
		if similar {
			st.detail.RepeatedUpdateCount++
			st.current++
			st.detail.ConsecutiveRepeats = max(st.detail.ConsecutiveRepeats, st.current)
		} else {
			st.current = 0
		}
		st.last = fingerprint

		daily := &model.DailyUpdateReport{
			MessageID:                 u.ID,
			EmployeeName:              name,
			CreatedDate:               u.Date,
			Accomplishments:           nonNil(u.Accomplishments),
			TaskCompletionStatus:      model.TaskCompletionYes,
			CarriedForwardTasks:       []string{},
			PlannedTasksToday:         nonNil(u.Plans),
			IsHighlySimilarToPrevious: similar,
		}
		if u.Project != "" && u.Project != model.UnknownProject {
			project := u.Project
			daily.ProjectTeam = &project
		}
		if !u.TasksCompleted {
			daily.TaskCompletionStatus = model.TaskCompletionNo
		}
		if u.CarryForward != "" {
			daily.CarriedForwardTasks = []string{u.CarryForward}
		}
		if u.CarryForwardReason != "" {
			reason := u.CarryForwardReason
			daily.CarryForwardReason = &reason
		}
		report.DailyUpdateReports = append(report.DailyUpdateReports, daily)
	}

	for _, d := range report.DuplicationSummary.Details {
		switch {
		case d.ConsecutiveRepeats >= highDuplicationRepeats:
			report.DuplicationSummary.Overall = model.DuplicationHigh
		case d.ConsecutiveRepeats >= 1 && report.DuplicationSummary.Overall == model.DuplicationLow:
			report.DuplicationSummary.Overall = model.DuplicationMedium
		}
	}

	return report
}

// accomplishmentFingerprint is an order and case insensitive key of a set of accomplishments
func accomplishmentFingerprint(items []string) string {
	if len(items) == 0 {
		return ""
	}
	normalized := make([]string, len(items))
	for i, item := range items {
		normalized[i] = strings.Join(strings.Fields(strings.ToLower(item)), " ")
	}
	slices.Sort(normalized)
	return strings.Join(normalized, "\n")
}

func analysisReportSchema() *gollem.Parameter {
	stringList := func(desc string) *gollem.Parameter {
		return &gollem.Parameter{
			Type:        gollem.TypeArray,
			Description: desc,
			Items:       &gollem.Parameter{Type: gollem.TypeString},
		}
	}

	return &gollem.Parameter{
		Title:       "StandupAnalysisReport",
		Description: "Analysis of daily standup updates posted in a chat",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"analysisDateRange": {
				Type:        gollem.TypeObject,
				Description: "Analyzed date range in YYYY-MM-DD",
				Required:    true,
				Properties: map[string]*gollem.Parameter{
					"from": {Type: gollem.TypeString, Required: true},
					"to":   {Type: gollem.TypeString, Required: true},
				},
			},
			"dailyUpdateReports": {
				Type:        gollem.TypeArray,
				Description: "One entry per standup message",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"messageId":            {Type: gollem.TypeString, Required: true},
						"employeeName":         {Type: gollem.TypeString, Required: true},
						"createdDate":          {Type: gollem.TypeString, Required: true},
						"projectTeam":          {Type: gollem.TypeString, Description: "Project or team, null when not stated"},
						"accomplishments":      stringList("Work done on the previous day"),
						"taskCompletionStatus": {Type: gollem.TypeString, Required: true, Enum: []string{"Yes", "No", "Not Specified"}},
						"carriedForwardTasks":  stringList("Tasks carried over from the previous day"),
						"carryForwardReason":   {Type: gollem.TypeString, Description: "Why tasks were carried forward, null when none"},
						"plannedTasksToday":    stringList("Plans for the day"),
						"isHighlySimilarToPrevious": {
							Type:        gollem.TypeBoolean,
							Description: "Accomplishments nearly identical to the employee's previous update",
							Required:    true,
						},
					},
				},
			},
			"duplicationSummary": {
				Type:     gollem.TypeObject,
				Required: true,
				Properties: map[string]*gollem.Parameter{
					"overall": {Type: gollem.TypeString, Required: true, Enum: []string{"High", "Medium", "Low"}},
					"details": {
						Type: gollem.TypeArray,
						Items: &gollem.Parameter{
							Type: gollem.TypeObject,
							Properties: map[string]*gollem.Parameter{
								"employeeName":        {Type: gollem.TypeString, Required: true},
								"repeatedUpdateCount": {Type: gollem.TypeInteger, Required: true},
								"consecutiveRepeats":  {Type: gollem.TypeInteger, Required: true},
							},
						},
					},
				},
			},
			"message": {Type: gollem.TypeString, Description: "Note for the reader, such as why the result is empty"},
		},
	}
}

func memberName(m *model.TeamMember) string {
	if m == nil || m.Name == "" {
		return "Unknown"
	}
	return m.Name
}

func memberKey(m *model.TeamMember) string {
	if m == nil {
		return ""
	}
	if m.ID != "" {
		return m.ID
	}
	return m.Name
}

// senders returns the distinct members of updates in order of first appearance
func senders(updates []*model.StandupUpdate) []*model.TeamMember {
	seen := make(map[string]struct{})
	var members []*model.TeamMember
	for _, u := range updates {
		if u.Member == nil {
			continue
		}
		key := memberKey(u.Member)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		members = append(members, u.Member)
	}
	return members
}

func memberInfos(members []*model.TeamMember) []*model.ChatMemberInfo {
	infos := make([]*model.ChatMemberInfo, len(members))
	for i, m := range members {
		infos[i] = &model.ChatMemberInfo{ID: m.ID, Name: m.Name, Email: m.Email}
	}
	return infos
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
