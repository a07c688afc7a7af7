package events

import (
	"context"
	"time"

	"postapi/internal/model"
)

// TypePostCreated is the event type emitted after a post is persisted.
const TypePostCreated = "blogpost.created"

// PostCreatedEvent is the payload published for every new post.
type PostCreatedEvent struct {
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	PublishedAt time.Time `json:"date_of_publication"`
	Avatar      *string   `json:"avatar,omitempty"`
	Image       *string   `json:"image,omitempty"`
}

// Publisher announces post lifecycle events.
type Publisher interface {
	PostCreated(ctx context.Context, post *model.Post) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) PostCreated(context.Context, *model.Post) error { return nil }
func (Noop) Close() error { return nil }

func newPostCreatedEvent(post *model.Post) PostCreatedEvent {
	return PostCreatedEvent{
		Type:        TypePostCreated,
		ID:          post.ID,
		Username:    post.Username,
		PublishedAt: post.PublishedAt,
		Avatar:      post.Avatar,
		Image:       post.Image,
	}
}
