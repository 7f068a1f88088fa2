package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/standup/pkg/domain/model"
)

func newUpdate(id, memberID, name, project, date string, accomplishments ...string) *model.StandupUpdate {
	return &model.StandupUpdate{
		ID:              id,
		Member:          &model.TeamMember{ID: memberID, Name: name},
		Project:         project,
		Date:            date,
		Accomplishments: accomplishments,
		RawMessage:      "Project/Team Name: " + project,
	}
}

func TestFilterOptions_Apply(t *testing.T) {
	updates := []*model.StandupUpdate{
		newUpdate("1", "u1", "Jane Doe", "Alpha", "2024-01-01", "Fixed login redirect"),
		newUpdate("2", "u2", "Ravi Kumar", "Beta", "2024-01-02", "Wrote migration scripts"),
		newUpdate("3", "u1", "Jane Doe", "beta", "2024-01-03", "Reviewed pull requests"),
	}

	ids := func(us []*model.StandupUpdate) []string {
		var out []string
		for _, u := range us {
			out = append(out, u.ID)
		}
		return out
	}

	tests := []struct {
		name string
		opts model.FilterOptions
		want []string
	}{
		{name: "zero value keeps everything", opts: model.FilterOptions{}, want: []string{"1", "2", "3"}},
		{name: "search matches accomplishments", opts: model.FilterOptions{SearchTerm: "MIGRATION"}, want: []string{"2"}},
		{name: "search matches member name", opts: model.FilterOptions{SearchTerm: "jane"}, want: []string{"1", "3"}},
		{name: "member by id", opts: model.FilterOptions{Members: []string{"u2"}}, want: []string{"2"}},
		{name: "member by name", opts: model.FilterOptions{Members: []string{"Jane Doe"}}, want: []string{"1", "3"}},
		{name: "project ignores case", opts: model.FilterOptions{Project: "BETA"}, want: []string{"2", "3"}},
		{name: "date range inclusive", opts: model.FilterOptions{From: "2024-01-02", To: "2024-01-03"}, want: []string{"2", "3"}},
		{name: "criteria combine", opts: model.FilterOptions{Project: "beta", Members: []string{"u1"}}, want: []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, ids(tt.opts.Apply(updates))).Equal(tt.want)
		})
	}
}

func TestProjects(t *testing.T) {
	updates := []*model.StandupUpdate{
		newUpdate("1", "u1", "A", "Gamma", "2024-01-01"),
		newUpdate("2", "u2", "B", "Alpha", "2024-01-01"),
		newUpdate("3", "u3", "C", "Gamma", "2024-01-01"),
	}
	gt.Value(t, model.Projects(updates)).Equal([]string{"Alpha", "Gamma"})
	gt.A(t, model.Projects(nil)).Length(0)
}

func TestMissingUpdates(t *testing.T) {
	members := []*model.TeamMember{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}
	updates := []*model.StandupUpdate{
		newUpdate("1", "u1", "A", "X", "2024-01-01"),
		newUpdate("2", "u2", "B", "X", "2024-01-02"),
	}

	missing := model.MissingUpdates(members, updates, "2024-01-01")
	gt.A(t, missing).Length(2)
	gt.Value(t, missing[0].ID).Equal("u2")
	gt.Value(t, missing[1].ID).Equal("u3")
}
