package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"data", RoleMetadata},
		{"avatar", RoleAvatar},
		{"image", RolePostImage},
		{"Data", RoleUnknown},
		{"file", RoleUnknown},
		{"", RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}
