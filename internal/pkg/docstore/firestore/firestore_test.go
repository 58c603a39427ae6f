package firestore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stockdash/internal/pkg/docstore"
)

func TestBuildUpdates(t *testing.T) {
	updates := buildUpdates(docstore.Fields{"stock": int64(7), "price": 3.0})

	assert.Len(t, updates, 2)
	assert.Equal(t, "price", updates[0].Path)
	assert.Equal(t, 3.0, updates[0].Value)
	assert.Equal(t, "stock", updates[1].Path)
	assert.Equal(t, int64(7), updates[1].Value)
}

func TestBuildUpdates_Empty(t *testing.T) {
	assert.Empty(t, buildUpdates(docstore.Fields{}))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "no document")))
	assert.False(t, isNotFound(status.Error(codes.PermissionDenied, "denied")))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.False(t, isNotFound(nil))
}
