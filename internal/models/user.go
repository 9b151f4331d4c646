package models

import "time"

// Status is the persisted availability of a user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// User is an account as persisted in the users table.
type User struct {
	ID          int64     `db:"id" json:"id"`
	GoogleID    *string   `db:"google_id" json:"-"`
	Email       string    `db:"email" json:"email"`
	DisplayName string    `db:"display_name" json:"displayName"`
	FirstName   string    `db:"first_name" json:"firstName"`
	LastName    string    `db:"last_name" json:"lastName"`
	Avatar      string    `db:"avatar" json:"avatar"`
	Bio         string    `db:"bio" json:"bio"`
	Status      Status    `db:"status" json:"status"`
	LastSeen    time.Time `db:"last_seen" json:"lastSeen"`
	LastLogin   time.Time `db:"last_login" json:"lastLogin"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`

	// IsOnline is derived from the persisted status and the presence registry.
	IsOnline bool `db:"-" json:"isOnline"`
}

// Summary projects the public fields of u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Status:      u.Status,
		LastSeen:    u.LastSeen,
		IsOnline:    u.IsOnline,
	}
}

// UserSummary is the public projection used when a user is referenced from
// another document (message sender, participant, friend).
type UserSummary struct {
	ID          int64     `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Email       string    `db:"email" json:"email,omitempty"`
	Avatar      string    `db:"avatar" json:"avatar"`
	Status      Status    `db:"status" json:"status"`
	LastSeen    time.Time `db:"last_seen" json:"lastSeen"`
	IsOnline    bool      `db:"-" json:"isOnline"`
}

// GoogleProfile is the identity returned by the OAuth provider.
type GoogleProfile struct {
	GoogleID  string
	Email     string
	Name      string
	FirstName string
	LastName  string
	Picture   string
}

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Status      *Status
}
