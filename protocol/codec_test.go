package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Request{
		SortArrayMsg{Numbers: []int32{5, 3, -1, 0, 42}},
		FindPrimeNumbersMsg{XFrom: 2, XTo: 97, PrimeNumbers: []int32{2, 3, 5, 7}},
		CalculateFunctionMsg{
			EquationType: Quadratic,
			XFrom:        -10, XTo: 10, XStep: 1,
			A: 1, B: 2, C: 3,
			Points: []Point{{X: -10, Y: 83}, {X: 0, Y: 3}},
		},
		CancelCurrentTaskMsg{},
		ProgressRangeMsg{Minimum: 0, Maximum: 100},
		ProgressValueMsg{Value: 42},
		InvalidRequestMsg{ErrorCode: ErrCorruptedData, ErrorText: "bad frame"},
	}

	for _, want := range cases {
		frame, err := Encode(want)
		require.NoError(t, err)

		got, err := DecodeFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	frame, err := Encode(CancelCurrentTaskMsg{})
	require.NoError(t, err)

	// Corrupt the frame by appending an extra byte without updating the
	// length prefix's payload boundary expectations.
	tampered := append(frame, 0xFF)
	_, err = DecodeFrame(tampered)
	require.Error(t, err)
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFingerprintIsDeterministicAndSensitiveToPayload(t *testing.T) {
	a, err := Encode(SortArrayMsg{Numbers: []int32{1, 2, 3}})
	require.NoError(t, err)
	b, err := Encode(SortArrayMsg{Numbers: []int32{1, 2, 4}})
	require.NoError(t, err)

	fpA1 := FingerprintPayload(a)
	fpA2 := FingerprintPayload(a)
	fpB := FingerprintPayload(b)

	assert.Equal(t, fpA1, fpA2)
	assert.NotEqual(t, fpA1, fpB)
}

func TestIsTaskSubmission(t *testing.T) {
	assert.True(t, IsTaskSubmission(SortArray))
	assert.True(t, IsTaskSubmission(FindPrimeNumbers))
	assert.True(t, IsTaskSubmission(CalculateFunction))
	assert.False(t, IsTaskSubmission(CancelCurrentTask))
	assert.False(t, IsTaskSubmission(ProgressRange))
}
