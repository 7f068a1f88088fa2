package model

import (
	"slices"
	"strings"
)

// FilterOptions narrows a list of standup updates. Zero values match everything.
type FilterOptions struct {
	SearchTerm string
	Members    []string
	Project    string
	From       string
	To         string
}

// Apply returns the updates matching every set criterion, preserving order
func (f FilterOptions) Apply(updates []*StandupUpdate) []*StandupUpdate {
	term := strings.ToLower(strings.TrimSpace(f.SearchTerm))

	result := make([]*StandupUpdate, 0, len(updates))
	for _, u := range updates {
		if term != "" && !u.contains(term) {
			continue
		}
		if len(f.Members) > 0 && !f.hasMember(u.Member) {
			continue
		}
		if f.Project != "" && !strings.EqualFold(u.Project, f.Project) {
			continue
		}
		if f.From != "" && u.Date < f.From {
			continue
		}
		if f.To != "" && u.Date > f.To {
			continue
		}
		result = append(result, u)
	}
	return result
}

func (f FilterOptions) hasMember(m *TeamMember) bool {
	if m == nil {
		return false
	}
	return slices.Contains(f.Members, m.ID) || slices.Contains(f.Members, m.Name)
}

func (u *StandupUpdate) contains(term string) bool {
	fields := []string{u.RawMessage, u.Project}
	if u.Member != nil {
		fields = append(fields, u.Member.Name)
	}
	fields = append(fields, u.Accomplishments...)
	fields = append(fields, u.Plans...)

	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

// Projects returns the sorted distinct project labels of updates
func Projects(updates []*StandupUpdate) []string {
	seen := make(map[string]struct{})
	var projects []string
	for _, u := range updates {
		if _, ok := seen[u.Project]; ok {
			continue
		}
		seen[u.Project] = struct{}{}
		projects = append(projects, u.Project)
	}
	slices.Sort(projects)
	return projects
}

// MissingUpdates returns the members that posted no update on date, in input order
func MissingUpdates(members []*TeamMember, updates []*StandupUpdate, date string) []*TeamMember {
	posted := make(map[string]struct{})
	for _, u := range updates {
		if u.Date != date || u.Member == nil {
			continue
		}
		posted[u.Member.ID] = struct{}{}
	}

	var missing []*TeamMember
	for _, m := range members {
		if _, ok := posted[m.ID]; !ok {
			missing = append(missing, m)
		}
	}
	return missing
}
