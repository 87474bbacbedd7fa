// Package framing implements the length-prefixed frame reassembly
// state machine shared by the server and client connection endpoints
// (spec §4.B: need-header / need-body read pipeline).
package framing

import "github.com/cppla/computesrv/protocol"

// HeaderLen is the size of the u32 length prefix.
const HeaderLen = 4

// Reassembler turns an arbitrarily-split byte stream back into whole
// frame payloads. A caller feeds it bytes as they arrive off the
// socket, in any chunking; Feed returns every payload that became
// complete as a result, in order, buffering the remainder for the next
// call. A zero-length payload is legal and is emitted like any other
// frame.
type Reassembler struct {
	pending []byte
}

// Feed appends data to the reassembler's buffer and extracts as many
// complete frame payloads as are now available.
func (r *Reassembler) Feed(data []byte) [][]byte {
	r.pending = append(r.pending, data...)

	var frames [][]byte
	for {
		if len(r.pending) < HeaderLen {
			break
		}
		size := protocol.Order.Uint32(r.pending[:HeaderLen])
		if uint32(len(r.pending)-HeaderLen) < size {
			break
		}
		frame := make([]byte, size)
		copy(frame, r.pending[HeaderLen:HeaderLen+size])
		r.pending = r.pending[HeaderLen+size:]
		frames = append(frames, frame)
	}
	return frames
}

// EncodeFrame prefixes payload with its u32 length.
func EncodeFrame(payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))
	protocol.Order.PutUint32(out[:HeaderLen], uint32(len(payload)))
	copy(out[HeaderLen:], payload)
	return out
}
