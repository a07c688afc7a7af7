package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		draft   PostDraft
		wantErr error
	}{
		{name: "valid", draft: PostDraft{Text: "Hello!", Username: "admin"}},
		{name: "text at limit", draft: PostDraft{Text: strings.Repeat("x", MaxTextLength), Username: "admin"}},
		{name: "username at limit", draft: PostDraft{Text: "hi", Username: strings.Repeat("u", MaxUsernameLength)}},
		{name: "empty text", draft: PostDraft{Username: "admin"}, wantErr: ErrTextRequired},
		{name: "text too long", draft: PostDraft{Text: strings.Repeat("x", MaxTextLength+1), Username: "admin"}, wantErr: ErrTextTooLong},
		{name: "empty username", draft: PostDraft{Text: "hi"}, wantErr: ErrUsernameRequired},
		{name: "username too long", draft: PostDraft{Text: "hi", Username: strings.Repeat("u", MaxUsernameLength+1)}, wantErr: ErrUsernameTooLong},
		// limits are byte lengths, not rune counts
		{name: "multibyte text over limit", draft: PostDraft{Text: strings.Repeat("é", 1001), Username: "admin"}, wantErr: ErrTextTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
