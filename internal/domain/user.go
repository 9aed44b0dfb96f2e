// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxUsernameLen = 64

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUserIDEmpty     = errors.New("user id empty")
)

// UserID is an opaque identity token. The core assumes no internal
// structure; authentication happens upstream.
type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func NewUser(id UserID, username, avatar string) (*User, error) {
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: id, Username: username, Avatar: avatar}, nil
}

// Participant is the display view of a user inside a call room. It is
// what joiners are announced with and what existing-participant lists carry.
type Participant struct {
	ID       UserID `json:"userId"`
	Username string `json:"userName"`
	Avatar   string `json:"userAvatar,omitempty"`
}

func (u *User) Participant() Participant {
	return Participant{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
