package fault

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

type state string

func (s state) String() string { return string(s) }

func TestError_Message(t *testing.T) {
	err := Wrap(StorageUnavailable, "storage.read", fs.ErrNotExist)
	assert.Equal(t, "storage.read: STORAGE_UNAVAILABLE: file does not exist", err.Error())

	err = Malformed("codec.decode", "record %d: negative recorded_at", 3)
	assert.Equal(t, "codec.decode: MALFORMED_LOG: record 3: negative recorded_at", err.Error())
}

func TestError_IsAndAs(t *testing.T) {
	base := InvalidState("recorder.stop", state("idle"))
	wrapped := fmt.Errorf("cli: %w", base)

	assert.True(t, errors.Is(wrapped, ErrInvalidState))
	assert.False(t, errors.Is(wrapped, ErrMalformedLog))
	assert.True(t, IsInvalidState(wrapped))
	assert.False(t, IsStorageUnavailable(wrapped))
	assert.Equal(t, InvalidStateTransition, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestStorage_KeepsExistingCode(t *testing.T) {
	assert.NoError(t, Storage("op", nil))

	malformed := Malformed("codec.decode", "bad")
	assert.Same(t, malformed, Storage("storage.read", malformed))

	err := Storage("storage.write", fs.ErrPermission)
	assert.True(t, IsStorageUnavailable(err))
	assert.True(t, errors.Is(err, fs.ErrPermission))
}
