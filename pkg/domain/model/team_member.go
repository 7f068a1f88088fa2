package model

import (
	"net/url"
	"strings"
)

const (
	DefaultEmailDomain = "company.com"

	avatarBaseURL = "https://ui-avatars.com/api/"
)

// TeamMember is a chat participant, resolved from the directory or inferred from message sender fields
type TeamMember struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	AvatarURL  string `json:"avatar,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
	Department string `json:"department,omitempty"`
}

// FallbackMember builds a member from sender fields only
func FallbackMember(id, name, emailDomain string) *TeamMember {
	return &TeamMember{
		ID:        id,
		Name:      name,
		Email:     SynthesizeEmail(name, emailDomain),
		AvatarURL: AvatarURL(name),
	}
}

// SynthesizeEmail derives a placeholder address such as "jane.doe@company.com" from a display name
func SynthesizeEmail(name, domain string) string {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	local := strings.Join(strings.Fields(strings.ToLower(name)), ".")
	return local + "@" + domain
}

// AvatarURL returns a generated initials avatar for name
func AvatarURL(name string) string {
	return avatarBaseURL + "?name=" + escapeComponent(name) + "&background=0078D4&color=fff"
}

// PhotoFallbackURL is AvatarURL sized for profile photo slots
func PhotoFallbackURL(name string) string {
	return AvatarURL(name) + "&size=96"
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
