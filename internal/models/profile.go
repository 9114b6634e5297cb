package models

import "time"

// UserProfile is the locally cached account record.
type UserProfile struct {
	Username   string    `json:"username"`
	ServerID   int64     `json:"server_id,omitempty"`
	Template   string    `json:"template,omitempty"`
	LastLogin  time.Time `json:"last_login"`
	RememberMe bool      `json:"remember_me"`
}

// LoginFailure is a diagnostic record written after repeated failed logins.
type LoginFailure struct {
	Username  string    `json:"username"`
	Attempt   int       `json:"attempt"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
