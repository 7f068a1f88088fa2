package graph

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/secmon-lab/standup/pkg/domain/model"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Service provides access to the Microsoft Graph resources used by the dashboard.
// Every call takes the caller's delegated access token.
type Service interface {
	// MessagesURL builds the chat messages URL. A cursor that is already an absolute URL is returned verbatim,
	// a bare cursor is sent as $skipToken. top > 0 sets the page size.
	MessagesURL(chatID, cursor string, top int) string

	// ListMessages fetches one page of messages from pageURL
	ListMessages(ctx context.Context, token, pageURL string) (*MessagesPage, error)

	// MessagePages follows @odata.nextLink from firstURL until the last page
	MessagePages(ctx context.Context, token, firstURL string) iter.Seq2[*MessagesPage, error]

	// GetChat retrieves chat metadata
	GetChat(ctx context.Context, token, chatID string) (*Chat, error)

	// ListChatMembers retrieves every member of a chat
	ListChatMembers(ctx context.Context, token, chatID string) ([]*ChatMember, error)

	// GetUser retrieves one directory user
	GetUser(ctx context.Context, token, userID string) (*User, error)

	// BatchGetUsers retrieves users with JSON batching. Users that fail individually are absent from the result.
	BatchGetUsers(ctx context.Context, token string, userIDs []string) (map[string]*User, error)

	// GetUserPhoto downloads a user's profile photo. It returns ErrNotFound when the user has none.
	GetUserPhoto(ctx context.Context, token, userID string) (*Photo, error)
}

// MessagesPage is the envelope of a chat messages response
type MessagesPage struct {
	Messages []*model.ChatMessage `json:"value"`
	NextLink string               `json:"@odata.nextLink,omitempty"`
}

type Chat struct {
	ID                  string    `json:"id"`
	Topic               string    `json:"topic"`
	ChatType            string    `json:"chatType"`
	CreatedDateTime     time.Time `json:"createdDateTime"`
	LastUpdatedDateTime time.Time `json:"lastUpdatedDateTime"`
	WebURL              string    `json:"webUrl"`
}

// ChatMember is an aadUserConversationMember
type ChatMember struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
}

type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
}

// Email returns mail, then userPrincipalName
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

type Photo struct {
	ContentType string
	Data        []byte
}

// APIError is a non-2xx response from Graph
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}

// IsNotFound reports whether the upstream returned 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
