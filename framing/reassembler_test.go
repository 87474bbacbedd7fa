package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedWholeFrameAtOnce(t *testing.T) {
	var r Reassembler
	frame := EncodeFrame([]byte("hello"))

	got := r.Feed(frame)
	if assert.Len(t, got, 1) {
		assert.Equal(t, []byte("hello"), got[0])
	}
}

func TestFeedSplitAcrossManyReads(t *testing.T) {
	var r Reassembler
	frame := EncodeFrame([]byte("split across reads"))

	var all [][]byte
	for i := 0; i < len(frame); i++ {
		all = append(all, r.Feed(frame[i:i+1])...)
	}

	if assert.Len(t, all, 1) {
		assert.Equal(t, []byte("split across reads"), all[0])
	}
}

func TestFeedMultipleFramesInOneRead(t *testing.T) {
	var r Reassembler
	combined := append(EncodeFrame([]byte("first")), EncodeFrame([]byte("second"))...)

	got := r.Feed(combined)
	if assert.Len(t, got, 2) {
		assert.Equal(t, []byte("first"), got[0])
		assert.Equal(t, []byte("second"), got[1])
	}
}

func TestFeedZeroLengthFrame(t *testing.T) {
	var r Reassembler
	got := r.Feed(EncodeFrame(nil))
	if assert.Len(t, got, 1) {
		assert.Empty(t, got[0])
	}
}

func TestFeedHoldsPartialHeader(t *testing.T) {
	var r Reassembler
	frame := EncodeFrame([]byte("x"))

	got := r.Feed(frame[:2])
	assert.Empty(t, got)

	got = r.Feed(frame[2:])
	if assert.Len(t, got, 1) {
		assert.Equal(t, []byte("x"), got[0])
	}
}
