package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fields are the standup sections extracted from one message
type Fields struct {
	Text               string
	Project            string
	Accomplishments    []string
	TasksCompleted     bool
	CarryForward       string
	CarryForwardReason string
	Plans              []string
}

// Parser extracts standup fields from plain text. It is safe for concurrent use.
type Parser struct {
	indicators     []*regexp.Regexp
	projectKeyword *regexp.Regexp
	projectPrefix  *regexp.Regexp
	unknownProject string
}

// section is a span of text that starts after start and ends before the first stop match, or at the end
type section struct {
	start *regexp.Regexp
	stop  *regexp.Regexp
}

func (s section) find(text string) (string, bool) {
	loc := s.start.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	if s.stop != nil {
		if end := s.stop.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
	}
	return rest, true
}

var (
	projectLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)project/team name:\s*([^–\n]+?)(?:\s*–|\s+what|\s+\d+\.|\s*$)`),
		regexp.MustCompile(`(?i)project:\s*([^–\n]+?)(?:\s*–|\s+what|\s+\d+\.|\s*$)`),
		regexp.MustCompile(`(?i)team:\s*([^–\n]+?)(?:\s*–|\s+what|\s+\d+\.|\s*$)`),
	}

	accomplishmentsQuestion = section{
		start: regexp.MustCompile(`(?is)(?:what were your )?accomplishments?\s+yesterday[^?]*\?\s*(?:\(tasks\))?\s*`),
		stop:  regexp.MustCompile(`(?i)\s*(?:did you achieve|what do you plan)`),
	}
	accomplishmentsLabel = section{
		start: regexp.MustCompile(`(?is)accomplishments?\s+yesterday:\s*`),
		stop:  regexp.MustCompile(`(?i)pending from|plan for today|did you achieve|what do you plan`),
	}
	statusQuestion = section{
		start: regexp.MustCompile(`(?is)did you achieve[^?]*\?(?:\s*if not[^?]*\?)?\s*`),
		stop:  regexp.MustCompile(`(?i)\s*what do you plan`),
	}
	pendingLabel = section{
		start: regexp.MustCompile(`(?is)pending from yesterday:\s*`),
		stop:  regexp.MustCompile(`(?i)plan for today`),
	}
	plansQuestion = section{
		start: regexp.MustCompile(`(?is)what do you plan.*?today\?\s*(?:\(tasks\))?\s*`),
	}
	plansLabel = section{
		start: regexp.MustCompile(`(?is)plan for today:\s*`),
	}

	answerYes    = regexp.MustCompile(`(?i)\byes\b`)
	answerNo     = regexp.MustCompile(`(?i)\bno\b`)
	carryForward = regexp.MustCompile(`(?is)(?:carry.*?forward|pending).*?:?\s*(.+?)(?:\s*(?:and why|because|reason).*?:?\s*(.+?))?$`)
	parenthesis  = regexp.MustCompile(`\(([^)]+)\)`)
	itemMarker   = regexp.MustCompile(`^(?:\d+\.\s*|[-*•]\s*|[a-zA-Z]\.\s*)`)
)

// New compiles patterns into a Parser
func New(p Patterns) (*Parser, error) {
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ps := &Parser{
		indicators:     make([]*regexp.Regexp, len(p.Indicators)),
		unknownProject: p.UnknownProject,
	}
	for i, ind := range p.Indicators {
		ps.indicators[i] = regexp.MustCompile("(?i)" + ind)
	}

	if len(p.Projects) > 0 {
		names := make([]string, len(p.Projects))
		for i, name := range p.Projects {
			names[i] = regexp.QuoteMeta(strings.TrimSpace(name))
		}
		alt := strings.Join(names, "|")
		ps.projectKeyword = regexp.MustCompile(`(?i)\b(` + alt + `)\b`)
		ps.projectPrefix = regexp.MustCompile(`(?i)^(?:` + alt + `):\s*`)
	}

	return ps, nil
}

// Default returns a Parser with the built-in patterns
func Default() *Parser {
	p, err := New(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return p
}

// ParseHTML strips markup from body and parses the result
func (p *Parser) ParseHTML(body string) (*Fields, bool) {
	return p.Parse(StripHTML(body))
}

// Parse extracts standup fields from plain text. It returns false when the text is not a
// standup message, or when neither accomplishments nor plans could be extracted.
func (p *Parser) Parse(text string) (*Fields, bool) {
	text = CollapseSpace(text)
	if !p.IsStandup(text) {
		return nil, false
	}

	f := &Fields{
		Text:            text,
		Project:         p.extractProject(text),
		Accomplishments: p.extractAccomplishments(text),
		Plans:           p.extractPlans(text),
	}
	if len(f.Accomplishments) == 0 && len(f.Plans) == 0 {
		return nil, false
	}

	f.TasksCompleted, f.CarryForward, f.CarryForwardReason = extractStatus(text)
	return f, true
}

// IsStandup reports whether any indicator matches text
func (p *Parser) IsStandup(text string) bool {
	for _, re := range p.indicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (p *Parser) extractProject(text string) string {
	for _, re := range projectLabels {
		if m := re.FindStringSubmatch(text); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}
	if p.projectKeyword != nil {
		if m := p.projectKeyword.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return p.unknownProject
}

func (p *Parser) extractAccomplishments(text string) []string {
	if span, ok := accomplishmentsQuestion.find(text); ok && strings.TrimSpace(span) != "" {
		if items := p.splitItems(span); len(items) > 0 {
			return items
		}
	}
	if span, ok := accomplishmentsLabel.find(text); ok {
		return p.splitItems(span)
	}
	return nil
}

func (p *Parser) extractPlans(text string) []string {
	if span, ok := plansQuestion.find(text); ok && strings.TrimSpace(span) != "" {
		if items := p.splitItems(span); len(items) > 0 {
			return items
		}
	}
	if span, ok := plansLabel.find(text); ok {
		return p.splitItems(span)
	}
	return nil
}

func extractStatus(text string) (completed bool, task, reason string) {
	completed = true

	if span, ok := statusQuestion.find(text); ok {
		if answer := strings.TrimSpace(span); answer != "" {
			completed = answerYes.MatchString(answer) && !answerNo.MatchString(answer)
			if !completed {
				if m := carryForward.FindStringSubmatch(answer); m != nil {
					task = strings.TrimSpace(m[1])
					reason = strings.TrimSpace(m[2])
				}
			}
		}
	}

	if span, ok := pendingLabel.find(text); ok {
		completed = false
		pending := strings.TrimSpace(span)
		if loc := parenthesis.FindStringSubmatchIndex(pending); loc != nil {
			reason = pending[loc[2]:loc[3]]
			task = strings.TrimSpace(pending[:loc[0]] + pending[loc[1]:])
		} else {
			task = pending
			reason = ""
		}
	}

	return completed, task, reason
}

// splitItems turns a free text span into list items
func (p *Parser) splitItems(text string) []string {
	clean := CollapseSpace(text)

	if runeLen(clean) > 20 && !strings.ContainsAny(clean, ".;") {
		return []string{clean}
	}

	var items []string
	for _, line := range splitSentences(clean) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = itemMarker.ReplaceAllString(line, "")
		if p.projectPrefix != nil {
			line = p.projectPrefix.ReplaceAllString(line, "")
		}
		line = strings.TrimSpace(line)
		if runeLen(line) > 10 {
			items = append(items, line)
		}
	}

	if len(items) == 0 && runeLen(clean) > 10 {
		items = append(items, clean)
	}
	return items
}

// splitSentences splits at every period, and at semicolons followed by an uppercase ASCII letter
func splitSentences(s string) []string {
	var parts []string
	begin := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.':
			parts = append(parts, s[begin:i])
			begin = i + 1
		case ';':
			if nextIsUpper(s[i+1:]) {
				parts = append(parts, s[begin:i])
				begin = i + 1
			}
		}
	}
	return append(parts, s[begin:])
}

func nextIsUpper(s string) bool {
	rest := strings.TrimLeft(s, " \t\r\n\f\v")
	return rest != "" && rest[0] >= 'A' && rest[0] <= 'Z'
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
