package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxTextLength is the upper bound of a post body in bytes.
	MaxTextLength = 2000
	// MaxUsernameLength is the upper bound of an author name in bytes.
	MaxUsernameLength = 128
)

var (
	ErrTextRequired     = errors.New("text is required")
	ErrTextTooLong      = fmt.Errorf("text exceeds %d bytes", MaxTextLength)
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTooLong  = fmt.Errorf("username exceeds %d bytes", MaxUsernameLength)
)

// Post is a published blog post.
// Avatar and Image hold image handles; nil means the client falls back to a placeholder.
type Post struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	Username    string    `json:"username"`
	PublishedAt time.Time `json:"date_of_publication"`
	Avatar      *string   `json:"avatar,omitempty"`
	Image       *string   `json:"image,omitempty"`
}

// PostDraft is the client-supplied metadata of a post being created.
// Avatar optionally references a remote image by URL.
type PostDraft struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Validate enforces the length limits. Oversized values are rejected, never truncated.
func (d PostDraft) Validate() error {
	switch {
	case d.Text == "":
		return ErrTextRequired
	case len(d.Text) > MaxTextLength:
		return ErrTextTooLong
	case d.Username == "":
		return ErrUsernameRequired
	case len(d.Username) > MaxUsernameLength:
		return ErrUsernameTooLong
	}
	return nil
}
