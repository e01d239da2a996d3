package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	dst := make([]byte, len(payload)*2+16)
	n, err := EncodeCOBS(payload, dst)
	require.NoError(t, err)
	return dst[:n]
}

func TestCOBSRoundTripNoZeros(t *testing.T) {
	payload := []byte("hello world")
	framed := encodeFrame(t, payload)

	d := NewDeframer(1024)
	out, err := d.Feed(framed)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, payload, out[0])
}

func TestCOBSRoundTripWithEmbeddedZeros(t *testing.T) {
	payload := []byte{0x41, 0x00, 0x00, 0x42, 0x00}
	framed := encodeFrame(t, payload)

	d := NewDeframer(1024)
	out, err := d.Feed(framed)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, payload, out[0])
}

func TestCOBSByteAtATimeMatchesSingleCall(t *testing.T) {
	payload1 := []byte("first message")
	payload2 := []byte{0x00, 0x01, 0x02, 0x00, 0x00}
	stream := append(append([]byte{}, encodeFrame(t, payload1)...), encodeFrame(t, payload2)...)

	bulk := NewDeframer(1024)
	bulkOut, err := bulk.Feed(stream)
	require.NoError(t, err)

	perByte := NewDeframer(1024)
	var perByteOut [][]byte
	for _, b := range stream {
		out, err := perByte.Feed([]byte{b})
		require.NoError(t, err)
		perByteOut = append(perByteOut, out...)
	}

	require.Len(t, bulkOut, 2)
	require.Len(t, perByteOut, 2)
	assert.Equal(t, bulkOut, perByteOut)
	assert.Equal(t, payload1, bulkOut[0])
	assert.Equal(t, payload2, bulkOut[1])
}

func TestCOBSChunkBoundariesDontMatter(t *testing.T) {
	payload1 := []byte("abc")
	payload2 := []byte("defgh")
	stream := append(append([]byte{}, encodeFrame(t, payload1)...), encodeFrame(t, payload2)...)

	for _, chunkSize := range []int{1, 7, len(stream)} {
		d := NewDeframer(1024)
		var got [][]byte
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			out, err := d.Feed(stream[i:end])
			require.NoError(t, err)
			got = append(got, out...)
		}
		require.Len(t, got, 2, "chunk size %d", chunkSize)
		assert.Equal(t, payload1, got[0])
		assert.Equal(t, payload2, got[1])
	}
}

func TestDeframerZeroLengthFeedIsNoOp(t *testing.T) {
	d := NewDeframer(16)
	out, err := d.Feed(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, StateEmpty, d.State())

	out, err = d.Feed([]byte{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDeframerOverflowResyncs(t *testing.T) {
	d := NewDeframer(4)
	// Feed more non-zero bytes than the accumulator can hold, then a
	// terminator, then a well-formed frame.
	_, err := d.Feed([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, StateOverflowWaitingForTerminator, d.State())

	out, err := d.Feed([]byte{0x00})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, StateEmpty, d.State())

	good := encodeFrame(t, []byte("ok"))
	out, err = d.Feed(good)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("ok"), out[0])
}

func TestCOBSOverheadBound(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	dst := make([]byte, len(payload)+len(payload)/254+8)
	n, err := EncodeCOBS(payload, dst)
	require.NoError(t, err)

	maxOverhead := (len(payload)+253)/254 + 1
	assert.LessOrEqual(t, n-len(payload), maxOverhead)
}
