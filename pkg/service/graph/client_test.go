package graph_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/standup/pkg/service/graph"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (graph.Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := graph.New(graph.WithBaseURL(srv.URL), graph.WithHTTPClient(srv.Client()))
	gt.NoError(t, err).Required()
	return svc, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	gt.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNew(t *testing.T) {
	_, err := graph.New(graph.WithBaseURL("not a url"))
	gt.Error(t, err).Is(graph.ErrInvalidInput)

	svc, err := graph.New()
	gt.NoError(t, err)
	gt.Value(t, svc.MessagesURL("c1", "", 0)).Equal("https://graph.microsoft.com/v1.0/chats/c1/messages")
}

func TestMessagesURL(t *testing.T) {
	svc, err := graph.New(graph.WithBaseURL("https://graph.example.com/v1.0/"))
	gt.NoError(t, err).Required()

	tests := []struct {
		name   string
		chatID string
		cursor string
		top    int
		want   string
	}{
		{name: "first page", chatID: "19:abc@thread.v2", want: "https://graph.example.com/v1.0/chats/19:abc@thread.v2/messages"},
		{name: "page size", chatID: "c1", top: 50, want: "https://graph.example.com/v1.0/chats/c1/messages?$top=50"},
		{name: "bare cursor", chatID: "c1", cursor: "tok/en=", want: "https://graph.example.com/v1.0/chats/c1/messages?$skipToken=tok%2Fen%3D"},
		{name: "absolute cursor verbatim", chatID: "c1", cursor: "https://graph.example.com/v1.0/chats/c1/messages?$skiptoken=X", top: 10, want: "https://graph.example.com/v1.0/chats/c1/messages?$skiptoken=X"},
		{name: "chat id escaped", chatID: "a/b", want: "https://graph.example.com/v1.0/chats/a%2Fb/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, svc.MessagesURL(tt.chatID, tt.cursor, tt.top)).Equal(tt.want)
		})
	}
}

func newForeignHost(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(t, w, map[string]any{"value": []any{}})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestForeignOriginIsRejected(t *testing.T) {
	foreign, hits := newForeignHost(t)

	t.Run("cursor on another host", func(t *testing.T) {
		svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []any{}})
		})

		_, err := svc.ListMessages(t.Context(), "secret", svc.MessagesURL("c1", foreign.URL+"/collect", 0))
		gt.Error(t, err).Is(graph.ErrInvalidInput)
		gt.Value(t, hits.Load()).Equal(int32(0))
	})

	t.Run("same host with different scheme", func(t *testing.T) {
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := svc.ListMessages(t.Context(), "secret", strings.Replace(srv.URL, "http://", "https://", 1)+"/m")
		gt.Error(t, err).Is(graph.ErrInvalidInput)
	})

	t.Run("message next link on another host", func(t *testing.T) {
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []map[string]any{{"id": "1"}}, "@odata.nextLink": foreign.URL + "/next"})
		})

		var ids []string
		var gotErr error
		for page, err := range svc.MessagePages(t.Context(), "secret", srv.URL+"/m") {
			if err != nil {
				gotErr = err
				break
			}
			for _, m := range page.Messages {
				ids = append(ids, m.ID)
			}
		}
		gt.Value(t, ids).Equal([]string{"1"})
		gt.Error(t, gotErr).Is(graph.ErrInvalidInput)
		gt.Value(t, hits.Load()).Equal(int32(0))
	})

	t.Run("member next link on another host", func(t *testing.T) {
		svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"value":           []map[string]any{{"id": "mm1", "userId": "u1"}},
				"@odata.nextLink": foreign.URL + "/members?page=2",
			})
		})

		_, err := svc.ListChatMembers(t.Context(), "secret", "c1")
		gt.Error(t, err).Is(graph.ErrInvalidInput)
		gt.Value(t, hits.Load()).Equal(int32(0))
	})
}

func TestListMessages(t *testing.T) {
	t.Run("decodes page and sends bearer token", func(t *testing.T) {
		var auth string
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			writeJSON(t, w, map[string]any{
				"value": []map[string]any{
					{
						"id":              "m1",
						"messageType":     "message",
						"createdDateTime": "2024-01-15T09:30:00.123Z",
						"from":            map[string]any{"user": map[string]any{"id": "u1", "displayName": "Jane Doe"}},
						"body":            map[string]any{"contentType": "html", "content": "<p>hi</p>"},
					},
				},
				"@odata.nextLink": "https://graph.microsoft.com/v1.0/next",
			})
		})

		page, err := svc.ListMessages(t.Context(), "tok", srv.URL+"/chats/c1/messages")
		gt.NoError(t, err).Required()
		gt.Value(t, auth).Equal("Bearer tok")
		gt.A(t, page.Messages).Length(1)
		gt.Value(t, page.Messages[0].ID).Equal("m1")
		gt.Value(t, page.Messages[0].Sender().DisplayName).Equal("Jane Doe")
		gt.Value(t, page.Messages[0].CreatedDateTime.Year()).Equal(2024)
		gt.Value(t, page.NextLink).Equal("https://graph.microsoft.com/v1.0/next")
	})

	t.Run("non 2xx carries status", func(t *testing.T) {
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":"InternalServerError","message":"boom"}}`)
		})

		_, err := svc.ListMessages(t.Context(), "tok", srv.URL+"/chats/c1/messages")
		gt.Error(t, err)

		var apiErr *graph.APIError
		gt.B(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(http.StatusInternalServerError)
		gt.Value(t, apiErr.Status).Equal("500 Internal Server Error")
		gt.Value(t, apiErr.Code).Equal("InternalServerError")
		gt.String(t, err.Error()).Contains("failed to fetch messages: 500 Internal Server Error (boom)")
	})

	t.Run("unparsable error body falls back to status", func(t *testing.T) {
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `<html>denied</html>`)
		})

		_, err := svc.ListMessages(t.Context(), "tok", srv.URL+"/x")
		var apiErr *graph.APIError
		gt.B(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.Message).Equal("")
		gt.Value(t, apiErr.Error()).Equal("failed to fetch messages: 403 Forbidden")
	})

	t.Run("transport failure is not an API error", func(t *testing.T) {
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()

		_, err := svc.ListMessages(t.Context(), "tok", srv.URL+"/x")
		gt.Error(t, err)
		var apiErr *graph.APIError
		gt.B(t, errors.As(err, &apiErr)).False()
	})
}

func TestMessagePages(t *testing.T) {
	var calls atomic.Int32
	var srvURL string
	svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("page") {
		case "":
			writeJSON(t, w, map[string]any{"value": []map[string]any{{"id": "1"}, {"id": "2"}}, "@odata.nextLink": srvURL + "/m?page=2"})
		case "2":
			writeJSON(t, w, map[string]any{"value": []map[string]any{{"id": "3"}}})
		}
	})
	srvURL = srv.URL

	var ids []string
	for page, err := range svc.MessagePages(t.Context(), "tok", srv.URL+"/m") {
		gt.NoError(t, err).Required()
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
	}
	gt.Value(t, ids).Equal([]string{"1", "2", "3"})
	gt.Value(t, calls.Load()).Equal(int32(2))

	t.Run("self referencing next link stops with error", func(t *testing.T) {
		var loopURL string
		svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []any{}, "@odata.nextLink": loopURL})
		})
		loopURL = srv.URL + "/loop"

		var gotErr error
		for _, err := range svc.MessagePages(t.Context(), "tok", loopURL) {
			if err != nil {
				gotErr = err
			}
		}
		gt.Error(t, gotErr)
	})
}

func TestBatchGetUsers(t *testing.T) {
	var batches atomic.Int32
	svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.Method).Equal(http.MethodPost)
		gt.Value(t, r.URL.Path).Equal("/$batch")
		batches.Add(1)

		var req struct {
			Requests []struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"requests"`
		}
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Number(t, len(req.Requests)).LessOrEqual(20)

		var responses []map[string]any
		for _, item := range req.Requests {
			id := strings.TrimPrefix(strings.Split(item.URL, "?")[0], "/users/")
			if id == "missing" {
				responses = append(responses, map[string]any{"id": item.ID, "status": 404, "body": map[string]any{"error": map[string]any{"code": "NotFound"}}})
				continue
			}
			responses = append(responses, map[string]any{
				"id":     item.ID,
				"status": 200,
				"body":   map[string]any{"id": id, "displayName": "User " + id, "userPrincipalName": id + "@example.com"},
			})
		}
		writeJSON(t, w, map[string]any{"responses": responses})
	})

	ids := []string{"missing"}
	for i := range 24 {
		ids = append(ids, fmt.Sprintf("u%d", i))
	}

	users, err := svc.BatchGetUsers(t.Context(), "tok", ids)
	gt.NoError(t, err).Required()
	gt.Value(t, batches.Load()).Equal(int32(2))
	gt.Value(t, len(users)).Equal(24)
	gt.Value(t, users["u3"].DisplayName).Equal("User u3")
	gt.Value(t, users["u3"].Email()).Equal("u3@example.com")
	_, ok := users["missing"]
	gt.B(t, ok).False()
}

func TestGetUser(t *testing.T) {
	svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.URL.Path).Equal("/users/u1")
		gt.String(t, r.URL.Query().Get("$select")).Contains("jobTitle")
		writeJSON(t, w, map[string]any{"id": "u1", "displayName": "Jane", "mail": "jane@example.com", "jobTitle": "SRE"})
	})

	user, err := svc.GetUser(t.Context(), "tok", "u1")
	gt.NoError(t, err).Required()
	gt.Value(t, user.Email()).Equal("jane@example.com")
	gt.Value(t, user.JobTitle).Equal("SRE")

	_, err = svc.GetUser(t.Context(), "tok", "")
	gt.Error(t, err).Is(graph.ErrInvalidInput)
}

func TestGetUserPhoto(t *testing.T) {
	svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/u1/photo/$value":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	photo, err := svc.GetUserPhoto(t.Context(), "tok", "u1")
	gt.NoError(t, err).Required()
	gt.Value(t, photo.ContentType).Equal("image/jpeg")
	gt.Value(t, photo.Data).Equal([]byte{0xff, 0xd8, 0xff})

	_, err = svc.GetUserPhoto(t.Context(), "tok", "u2")
	gt.Error(t, err).Is(graph.ErrNotFound)
}

func TestGetChatAndMembers(t *testing.T) {
	var srvURL string
	svc, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/chats/c1":
			writeJSON(t, w, map[string]any{"id": "c1", "topic": "Daily standup", "chatType": "group"})
		case r.URL.Path == "/chats/c1/members" && r.URL.Query().Get("page") == "":
			writeJSON(t, w, map[string]any{
				"value":           []map[string]any{{"id": "mm1", "userId": "u1", "displayName": "Jane", "email": "jane@example.com"}},
				"@odata.nextLink": srvURL + "/chats/c1/members?page=2",
			})
		case r.URL.Path == "/chats/c1/members":
			writeJSON(t, w, map[string]any{"value": []map[string]any{{"id": "mm2", "userId": "u2", "displayName": "Ravi"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srvURL = srv.URL

	chat, err := svc.GetChat(t.Context(), "tok", "c1")
	gt.NoError(t, err).Required()
	gt.Value(t, chat.Topic).Equal("Daily standup")

	members, err := svc.ListChatMembers(t.Context(), "tok", "c1")
	gt.NoError(t, err).Required()
	gt.A(t, members).Length(2)
	gt.Value(t, members[1].UserID).Equal("u2")

	_, err = svc.GetChat(t.Context(), "tok", "nope")
	var apiErr *graph.APIError
	gt.B(t, errors.As(err, &apiErr)).True()
	gt.B(t, apiErr.IsNotFound()).True()
}
