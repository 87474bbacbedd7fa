package protocol

import "fmt"

// DecodeFrame decodes a full wire frame (length prefix included) and
// verifies the prefix matches the payload length before delegating to
// Decode. Used by tests and by any caller that has not already split
// the stream via the reassembler.
func DecodeFrame(raw []byte) (Request, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: frame shorter than length prefix", ErrCorrupted)
	}
	n := Order.Uint32(raw[:4])
	payload := raw[4:]
	if int(n) != len(payload) {
		return nil, fmt.Errorf("%w: length prefix %d does not match payload %d bytes", ErrCorrupted, n, len(payload))
	}
	return Decode(payload)
}

// Credential is the login handshake body: a bare
// | u32 usernameLen | utf8 | u32 passwordLen | utf8 |, with no type
// discriminator (§6). It travels as the first payload on a freshly
// accepted socket, distinguished by being first rather than by tag.
type Credential struct {
	Username string `json:"username" toml:"username"`
	Password string `json:"password" toml:"password"`
}

// EncodeCredential serializes a login handshake payload (no length prefix,
// no type discriminator — callers wrap it in a frame themselves).
func EncodeCredential(c Credential) []byte {
	var body []byte
	body = appendString(body, c.Username)
	body = appendString(body, c.Password)
	return body
}

// DecodeCredential parses a login handshake payload.
func DecodeCredential(payload []byte) (Credential, error) {
	d := &decoder{buf: payload}
	user, err := d.readString()
	if err != nil {
		return Credential{}, err
	}
	pass, err := d.readString()
	if err != nil {
		return Credential{}, err
	}
	if err := d.finish(); err != nil {
		return Credential{}, err
	}
	return Credential{Username: user, Password: pass}, nil
}

func appendString(buf []byte, s string) []byte {
	var tmp [4]byte
	Order.PutUint32(tmp[:], uint32(len(s)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, s...)
	return buf
}
