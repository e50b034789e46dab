package weather

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := NotFound("city with id %d not found", 42)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "city with id 42 not found", err.Error())
	assert.Equal(t, KindNotFound, KindOf(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestStoreFailure(t *testing.T) {
	cause := errors.New("connection reset by peer")

	err := StoreFailure("list cities", cause)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "list cities: connection reset by peer", err.Error())

	conflict := Conflict("city %s, %s already exists", "Paris", "FR")
	assert.Same(t, conflict, StoreFailure("insert city", conflict))

	assert.NoError(t, StoreFailure("noop", nil))
	assert.Equal(t, Kind(0), KindOf(cause))
}
