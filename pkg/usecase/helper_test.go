package usecase_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/service/graph"
)

const testChatID = "19:standup@thread.v2"

// fakeGraph serves the subset of Microsoft Graph used by the use cases
type fakeGraph struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []string
	tokens   []string

	// pages are keyed by $skipToken, "" is the first page
	pages        map[string][]*model.ChatMessage
	next         map[string]string
	users        map[string]*graph.User
	members      []*graph.ChatMember
	failMessages int
	failBatch    bool
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()

	f := &fakeGraph{
		pages: make(map[string][]*model.ChatMessage),
		next:  make(map[string]string),
		users: make(map[string]*graph.User),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGraph) client(t *testing.T) graph.Service {
	t.Helper()
	gs, err := graph.New(graph.WithBaseURL(f.server.URL))
	gt.NoError(t, err).Required()
	return gs
}

func (f *fakeGraph) setPage(skipToken string, next string, msgs ...*model.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[skipToken] = msgs
	f.next[skipToken] = next
}

func (f *fakeGraph) addUser(id, name, mail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &graph.User{ID: id, DisplayName: name, Mail: mail, JobTitle: "Engineer"}
}

func (f *fakeGraph) setFailMessages(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMessages = status
}

func (f *fakeGraph) setFailBatch(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBatch = fail
}

func (f *fakeGraph) setMembers(members ...*graph.ChatMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = members
}

func (f *fakeGraph) requestURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeGraph) count(substr string) int {
	n := 0
	for _, r := range f.requestURIs() {
		if strings.Contains(r, substr) {
			n++
		}
	}
	return n
}

func (f *fakeGraph) messagesURL(skipToken string) string {
	return f.server.URL + "/chats/" + testChatID + "/messages?$skipToken=" + url.QueryEscape(skipToken)
}

func (f *fakeGraph) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
	f.tokens = append(f.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/$batch":
		f.handleBatch(w, r)
	case strings.HasPrefix(path, "/users/") && strings.HasSuffix(path, "/photo/$value"):
		writeGraphError(w, http.StatusNotFound, "ImageNotFound", "photo not found")
	case strings.HasPrefix(path, "/users/"):
		f.mu.Lock()
		user, ok := f.users[strings.TrimPrefix(path, "/users/")]
		f.mu.Unlock()
		if !ok {
			writeGraphError(w, http.StatusNotFound, "Request_ResourceNotFound", "user not found")
			return
		}
		writeJSON(w, user)
	case strings.HasSuffix(path, "/messages"):
		f.handleMessages(w, r)
	case strings.HasSuffix(path, "/members"):
		f.mu.Lock()
		members := f.members
		f.mu.Unlock()
		writeJSON(w, map[string]any{"value": members})
	case strings.HasPrefix(path, "/chats/"):
		id := strings.TrimPrefix(path, "/chats/")
		if id != testChatID {
			writeGraphError(w, http.StatusNotFound, "NotFound", "chat not found")
			return
		}
		writeJSON(w, &graph.Chat{ID: id, Topic: "Daily standup", ChatType: "group"})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGraph) handleMessages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.failMessages
	skipToken := r.URL.Query().Get("$skipToken")
	msgs, ok := f.pages[skipToken]
	next := f.next[skipToken]
	f.mu.Unlock()

	if fail != 0 {
		writeGraphError(w, fail, "InternalServerError", "graph is down")
		return
	}
	if !ok {
		writeGraphError(w, http.StatusBadRequest, "BadRequest", "unknown skip token")
		return
	}

	resp := graph.MessagesPage{Messages: msgs}
	if next != "" {
		resp.NextLink = f.messagesURL(next)
	}
	writeJSON(w, resp)
}

func (f *fakeGraph) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGraphError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	type item struct {
		ID     string `json:"id"`
		Status int    `json:"status"`
		Body   any    `json:"body"`
	}
	var responses []item
	for _, rq := range req.Requests {
		id := strings.TrimPrefix(rq.URL, "/users/")
		if i := strings.Index(id, "?"); i >= 0 {
			id = id[:i]
		}
		if user, ok := f.users[id]; ok {
			responses = append(responses, item{ID: rq.ID, Status: http.StatusOK, Body: user})
		} else {
			responses = append(responses, item{ID: rq.ID, Status: http.StatusNotFound, Body: map[string]any{}})
		}
	}
	writeJSON(w, map[string]any{"responses": responses})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeGraphError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func chatMessage(id, userID, name, html string, created time.Time) *model.ChatMessage {
	return &model.ChatMessage{
		ID:              id,
		MessageType:     model.MessageTypeMessage,
		CreatedDateTime: created,
		From: &model.MessageFrom{
			User: &model.Identity{ID: userID, DisplayName: name},
		},
		Body: model.MessageBody{ContentType: "html", Content: html},
	}
}

func systemMessage(id string, created time.Time) *model.ChatMessage {
	return &model.ChatMessage{
		ID:              id,
		MessageType:     "systemEventMessage",
		CreatedDateTime: created,
		Body:            model.MessageBody{ContentType: "html", Content: "<systemEventMessage/>"},
	}
}

func standupHTML(project, done, plan string) string {
	return "<p>Project/Team Name: " + project + " – What were your accomplishments yesterday? " + done +
		". Did you achieve all planned tasks? Yes. What do you plan to work on today? " + plan + ".</p>"
}
