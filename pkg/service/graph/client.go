package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/metrics"
	"github.com/secmon-lab/standup/pkg/utils/safe"
)

const (
	// maxBatchSize is the JSON batching limit of Graph
	maxBatchSize = 20

	userSelect = "id,displayName,mail,userPrincipalName,jobTitle,department"

	errorBodyLimit = 64 * 1024
)

// client implements Service interface
type client struct {
	baseURL    string
	origin     *url.URL
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the Graph endpoint, mainly for tests and national clouds
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// New creates a new Graph service
func New(opts ...Option) (Service, error) {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	if !isAbsoluteURL(c.baseURL) {
		return nil, goerr.Wrap(ErrInvalidInput, "graph base URL must be absolute", goerr.V(URLKey, c.baseURL))
	}
	origin, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid graph base URL", goerr.V(URLKey, c.baseURL))
	}
	c.origin = origin

	return c, nil
}

// sameOrigin reports whether u points at the scheme and host of the configured base URL.
// Cursors and next links from any other origin must never receive the bearer token.
func (c *client) sameOrigin(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Scheme, c.origin.Scheme) &&
		strings.EqualFold(parsed.Host, c.origin.Host)
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func (c *client) MessagesURL(chatID, cursor string, top int) string {
	if isAbsoluteURL(cursor) {
		return cursor
	}

	var params []string
	if top > 0 {
		params = append(params, "$top="+strconv.Itoa(top))
	}
	if cursor != "" {
		params = append(params, "$skipToken="+url.QueryEscape(cursor))
	}

	u := c.baseURL + "/chats/" + url.PathEscape(chatID) + "/messages"
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

func (c *client) ListMessages(ctx context.Context, token, pageURL string) (*MessagesPage, error) {
	var page MessagesPage
	if err := c.getJSON(ctx, "fetch messages", "messages", token, pageURL, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *client) MessagePages(ctx context.Context, token, firstURL string) iter.Seq2[*MessagesPage, error] {
	return func(yield func(*MessagesPage, error) bool) {
		next := firstURL
		for next != "" {
			page, err := c.ListMessages(ctx, token, next)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			if page.NextLink == next {
				yield(nil, goerr.New("next link points to the current page", goerr.V(URLKey, next)))
				return
			}
			next = page.NextLink
		}
	}
}

func (c *client) GetChat(ctx context.Context, token, chatID string) (*Chat, error) {
	if chatID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "chat ID is required")
	}

	var chat Chat
	u := c.baseURL + "/chats/" + url.PathEscape(chatID)
	if err := c.getJSON(ctx, "fetch chat", "chat", token, u, &chat); err != nil {
		return nil, goerr.Wrap(err, "failed to get chat", goerr.V(ChatIDKey, chatID))
	}
	return &chat, nil
}

func (c *client) ListChatMembers(ctx context.Context, token, chatID string) ([]*ChatMember, error) {
	if chatID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "chat ID is required")
	}

	var members []*ChatMember
	next := c.baseURL + "/chats/" + url.PathEscape(chatID) + "/members"
	for next != "" {
		var resp struct {
			Value    []*ChatMember `json:"value"`
			NextLink string        `json:"@odata.nextLink"`
		}
		if err := c.getJSON(ctx, "fetch chat members", "members", token, next, &resp); err != nil {
			return nil, goerr.Wrap(err, "failed to list chat members", goerr.V(ChatIDKey, chatID))
		}
		members = append(members, resp.Value...)
		if resp.NextLink == next {
			break
		}
		next = resp.NextLink
	}
	return members, nil
}

func (c *client) GetUser(ctx context.Context, token, userID string) (*User, error) {
	if userID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "user ID is required")
	}

	var user User
	u := c.baseURL + "/users/" + url.PathEscape(userID) + "?$select=" + userSelect
	if err := c.getJSON(ctx, "fetch user", "user", token, u, &user); err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}
	return &user, nil
}

type batchRequest struct {
	Requests []batchRequestItem `json:"requests"`
}

type batchRequestItem struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type batchResponse struct {
	Responses []struct {
		ID     string          `json:"id"`
		Status int             `json:"status"`
		Body   json.RawMessage `json:"body"`
	} `json:"responses"`
}

func (c *client) BatchGetUsers(ctx context.Context, token string, userIDs []string) (map[string]*User, error) {
	users := make(map[string]*User, len(userIDs))

	for start := 0; start < len(userIDs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(userIDs))
		chunk := userIDs[start:end]

		req := batchRequest{Requests: make([]batchRequestItem, len(chunk))}
		for i, id := range chunk {
			req.Requests[i] = batchRequestItem{
				ID:     strconv.Itoa(i),
				Method: http.MethodGet,
				URL:    "/users/" + url.PathEscape(id) + "?$select=" + userSelect,
			}
		}

		raw, err := json.Marshal(req)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal batch request")
		}

		var resp batchResponse
		if err := c.doJSON(ctx, "fetch users", "batch", token, http.MethodPost, c.baseURL+"/$batch", bytes.NewReader(raw), &resp); err != nil {
			return nil, goerr.Wrap(err, "failed to batch get users", goerr.V("count", len(chunk)))
		}

		for _, r := range resp.Responses {
			if r.Status != http.StatusOK {
				continue
			}
			idx, err := strconv.Atoi(r.ID)
			if err != nil || idx < 0 || idx >= len(chunk) {
				continue
			}
			var user User
			if err := json.Unmarshal(r.Body, &user); err != nil {
				continue
			}
			if user.ID == "" {
				user.ID = chunk[idx]
			}
			users[chunk[idx]] = &user
		}
	}

	return users, nil
}

func (c *client) GetUserPhoto(ctx context.Context, token, userID string) (*Photo, error) {
	if userID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "user ID is required")
	}

	u := c.baseURL + "/users/" + url.PathEscape(userID) + "/photo/$value"
	resp, err := c.send(ctx, "photo", token, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, goerr.Wrap(ErrNotFound, "user has no photo", goerr.V(UserIDKey, userID))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.Wrap(newAPIError("fetch user photo", resp), "graph API returned error status", goerr.V(URLKey, u))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read photo", goerr.V(UserIDKey, userID))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Photo{ContentType: contentType, Data: data}, nil
}

func (c *client) getJSON(ctx context.Context, op, endpoint, token, u string, out any) error {
	return c.doJSON(ctx, op, endpoint, token, http.MethodGet, u, nil, out)
}

func (c *client) doJSON(ctx context.Context, op, endpoint, token, method, u string, body io.Reader, out any) error {
	resp, err := c.send(ctx, endpoint, token, method, u, body)
	if err != nil {
		return err
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.Wrap(newAPIError(op, resp), "graph API returned error status", goerr.V(URLKey, u))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode graph response", goerr.V(URLKey, u))
	}
	return nil
}

func (c *client) send(ctx context.Context, endpoint, token, method, u string, body io.Reader) (*http.Response, error) {
	if !c.sameOrigin(u) {
		return nil, goerr.Wrap(ErrInvalidInput, "URL is outside the graph endpoint", goerr.V(URLKey, u))
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create graph request", goerr.V(URLKey, u))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GraphRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, goerr.Wrap(err, "graph request failed", goerr.V(URLKey, u))
	}
	metrics.GraphRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	return resp, nil
}

func newAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if apiErr.Status == "" {
		apiErr.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err == nil && json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}

	return apiErr
}
