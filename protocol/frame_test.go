package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	want := Credential{Username: "alice", Password: "hunter2"}
	payload := EncodeCredential(want)

	got, err := DecodeCredential(payload)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeFrameRejectsMismatchedLengthPrefix(t *testing.T) {
	frame, err := Encode(CancelCurrentTaskMsg{})
	require.NoError(t, err)

	Order.PutUint32(frame[:4], uint32(len(frame))) // deliberately wrong
	_, err = DecodeFrame(frame)
	assert.ErrorIs(t, err, ErrCorrupted)
}
