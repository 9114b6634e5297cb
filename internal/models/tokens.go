package models

import "time"

// Tokens is the authentication material returned by login, register and refresh.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func (t Tokens) IsZero() bool {
	return t.AccessToken == ""
}

// NeedsRefresh reports whether the token expires within threshold of now.
// Tokens without a known expiry never need a proactive refresh.
func (t Tokens) NeedsRefresh(now time.Time, threshold time.Duration) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Sub(now) < threshold
}

// Session is the current user with their tokens.
type Session struct {
	Username string
	Tokens   Tokens
}

// Authenticated reports whether the session holds both a username and a token.
func (s Session) Authenticated() bool {
	return s.Username != "" && s.Tokens.AccessToken != ""
}
