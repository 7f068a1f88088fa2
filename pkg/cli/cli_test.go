package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/standup/pkg/cli"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/service/graph"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := cli.RunWithWriter(context.Background(), append([]string{"standup", "--log-output", "stderr"}, args...), "test", &buf)
	return buf.String(), err
}

func TestRun_ValidateCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid patterns", func(t *testing.T) {
		path := filepath.Join(dir, "valid.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`indicators = ["daily sync", "blockers?"]
projects = ["Apollo", "Gemini"]
`), 0o600)).Required()

		out, err := runCLI(t, "validate", "--patterns", path)
		gt.NoError(t, err).Required()
		gt.String(t, out).Contains("2 indicators, 2 projects")
	})

	t.Run("indicator does not compile", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`indicators = ["unclosed (group"]`), 0o600)).Required()

		_, err := runCLI(t, "validate", "--patterns", path)
		gt.Value(t, err).NotNil()
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "validate", "--patterns", filepath.Join(dir, "none.toml"))
		gt.Value(t, err).NotNil()
	})
}

func TestRun_FetchCommand(t *testing.T) {
	const chatID = "19:standup@thread.v2"

	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(graph.MessagesPage{Messages: []*model.ChatMessage{
			{
				ID:              "m1",
				MessageType:     model.MessageTypeMessage,
				CreatedDateTime: time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
				From:            &model.MessageFrom{User: &model.Identity{ID: "u1", DisplayName: "Jane Doe"}},
				Body: model.MessageBody{
					ContentType: "html",
					Content: "<p>Project/Team Name: Alpha – What were your accomplishments yesterday? " +
						"Fixed the login redirect bug. Did you achieve all planned tasks? Yes. " +
						"What do you plan to work on today? Write integration tests.</p>",
				},
			},
		}})
	})
	mux.HandleFunc("POST /$batch", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"responses": []any{}})
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("json output", func(t *testing.T) {
		out, err := runCLI(t, "fetch", "--chat-id", chatID, "--token", "token", "--graph-base-url", srv.URL, "--json")
		gt.NoError(t, err).Required()

		var page model.Page
		gt.NoError(t, json.Unmarshal([]byte(out), &page)).Required()
		gt.Array(t, page.Updates).Length(1)
		gt.Value(t, page.Updates[0].Project).Equal("Alpha")
		gt.Value(t, page.Updates[0].Member.Name).Equal("Jane Doe")
	})

	t.Run("text output", func(t *testing.T) {
		out, err := runCLI(t, "fetch", "--chat-id", chatID, "--token", "token", "--graph-base-url", srv.URL)
		gt.NoError(t, err).Required()
		gt.String(t, out).Contains("Jane Doe")
		gt.String(t, out).Contains("Fixed the login redirect bug")
		gt.String(t, out).Contains("All planned tasks completed")
	})

	t.Run("all and cursor conflict", func(t *testing.T) {
		_, err := runCLI(t, "fetch", "--chat-id", chatID, "--token", "token", "--graph-base-url", srv.URL, "--all", "--cursor", "abc")
		gt.Value(t, err).NotNil()
	})
}

func TestIndexConfig(t *testing.T) {
	cfg := cli.IndexConfig("")
	gt.Array(t, cfg.Collections).Length(1)
	gt.Value(t, cfg.Collections[0].Name).Equal("standup_reports")

	fields := cfg.Collections[0].Indexes[0].Fields
	gt.Array(t, fields).Length(2)
	gt.Value(t, fields[0].Path).Equal("chat_id")
	gt.Value(t, fields[1].Order).Equal(fireconf.OrderDescending)

	gt.Value(t, cli.IndexConfig("test").Collections[0].Name).Equal("test_standup_reports")
}
