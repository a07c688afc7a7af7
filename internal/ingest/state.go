package ingest

import (
	"context"

	"go.uber.org/zap"

	"postapi/internal/image"
	"postapi/internal/logger"
	"postapi/internal/model"
)

// Deleter removes stored images.
type Deleter interface {
	Delete(ctx context.Context, h image.Handle) error
}

// State accumulates what one request has produced so far.
// Fields are only ever filled in; compensation goes through Rollback.
type State struct {
	Draft  *model.PostDraft
	Avatar image.Handle
	Image  image.Handle
}

func (s *State) handle(r Role) image.Handle {
	if r == RoleAvatar {
		return s.Avatar
	}
	return s.Image
}

func (s *State) setHandle(r Role, h image.Handle) {
	if h.IsZero() {
		return
	}
	if r == RoleAvatar {
		s.Avatar = h
		return
	}
	s.Image = h
}

// Rollback deletes every image the state references and forgets them.
// Failed deletes are logged and otherwise ignored. Calling it again, or on a nil or empty state, is a no-op.
func (s *State) Rollback(ctx context.Context, d Deleter, log *zap.Logger) {
	if s == nil {
		return
	}
	log = logger.For(ctx, log)
	ctx = context.WithoutCancel(ctx)
	for _, h := range []image.Handle{s.Avatar, s.Image} {
		if h.IsZero() {
			continue
		}
		if err := d.Delete(ctx, h); err != nil {
			log.Warn("image_cleanup_failed", zap.String("handle", h.String()), zap.Error(err))
			continue
		}
		log.Debug("image_cleanup", zap.String("handle", h.String()))
	}
	s.Avatar, s.Image = "", ""
}
