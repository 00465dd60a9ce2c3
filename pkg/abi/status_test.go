package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

func TestStatusWordPending(t *testing.T) {
	pending, ready, _, _, hasMsg := EncodePending().Decode()
	assert.True(t, pending)
	assert.False(t, ready)
	assert.False(t, hasMsg)
}

func TestStatusWordReady(t *testing.T) {
	pending, ready, n, _, _ := EncodeReady(42).Decode()
	assert.False(t, pending)
	assert.True(t, ready)
	assert.Equal(t, uint32(42), n)
}

func TestStatusWordErrorCode(t *testing.T) {
	pending, ready, _, errType, hasMsg := EncodeErrorCode(kernelerr.ErrNotFound).Decode()
	assert.False(t, pending)
	assert.False(t, ready)
	assert.False(t, hasMsg)
	assert.Equal(t, kernelerr.ErrNotFound, errType)
}

func TestStatusWordErrorWithMessage(t *testing.T) {
	pending, ready, _, _, hasMsg := EncodeErrorWithMessage().Decode()
	assert.False(t, pending)
	assert.False(t, ready)
	assert.True(t, hasMsg)
}
