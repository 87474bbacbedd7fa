package protocol

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// ErrCorrupted is returned (wrapped) by Decode whenever the payload is
// truncated, carries an unknown type discriminator, or a string field is
// not valid UTF-8. Callers translate it to InvalidRequestMsg{ErrCorruptedData}.
var ErrCorrupted = fmt.Errorf("protocol: corrupted frame payload")

// Encode serializes req as a full frame: a u32 length prefix followed by
// the payload (u32 type discriminator + fields, in declaration order).
func Encode(req Request) ([]byte, error) {
	var body bytes.Buffer
	writeU32(&body, uint32(req.Type()))

	switch m := req.(type) {
	case InvalidRequestMsg:
		writeU32(&body, uint32(m.ErrorCode))
		writeString(&body, m.ErrorText)
	case SortArrayMsg:
		writeI32Slice(&body, m.Numbers)
	case FindPrimeNumbersMsg:
		writeI32(&body, m.XFrom)
		writeI32(&body, m.XTo)
		writeI32Slice(&body, m.PrimeNumbers)
	case CalculateFunctionMsg:
		writeU32(&body, uint32(m.EquationType))
		writeI32(&body, m.XFrom)
		writeI32(&body, m.XTo)
		writeI32(&body, m.XStep)
		writeI32(&body, m.A)
		writeI32(&body, m.B)
		writeI32(&body, m.C)
		writeU32(&body, uint32(len(m.Points)))
		for _, p := range m.Points {
			writeI32(&body, p.X)
			writeI32(&body, p.Y)
		}
	case CancelCurrentTaskMsg:
		// no fields
	case ProgressRangeMsg:
		writeI32(&body, m.Minimum)
		writeI32(&body, m.Maximum)
	case ProgressValueMsg:
		writeI32(&body, m.Value)
	default:
		return nil, fmt.Errorf("protocol: encode: unknown request type %T", req)
	}

	frame := make([]byte, 4+body.Len())
	Order.PutUint32(frame[:4], uint32(body.Len()))
	copy(frame[4:], body.Bytes())
	return frame, nil
}

// Decode parses a single frame payload (the bytes after the length
// prefix, as delivered by the reassembler) into a typed Request. Any
// malformed input is reported as ErrCorrupted.
func Decode(payload []byte) (Request, error) {
	d := &decoder{buf: payload}
	rawType, err := d.readU32()
	if err != nil {
		return nil, err
	}

	switch RequestType(rawType) {
	case InvalidRequest:
		code, err := d.readU32()
		if err != nil {
			return nil, err
		}
		text, err := d.readString()
		if err != nil {
			return nil, err
		}
		return InvalidRequestMsg{ErrorCode: ErrorCode(code), ErrorText: text}, d.finish()
	case SortArray:
		nums, err := d.readI32Slice()
		if err != nil {
			return nil, err
		}
		return SortArrayMsg{Numbers: nums}, d.finish()
	case FindPrimeNumbers:
		from, err := d.readI32()
		if err != nil {
			return nil, err
		}
		to, err := d.readI32()
		if err != nil {
			return nil, err
		}
		primes, err := d.readI32Slice()
		if err != nil {
			return nil, err
		}
		return FindPrimeNumbersMsg{XFrom: from, XTo: to, PrimeNumbers: primes}, d.finish()
	case CalculateFunction:
		eq, err := d.readU32()
		if err != nil {
			return nil, err
		}
		from, err := d.readI32()
		if err != nil {
			return nil, err
		}
		to, err := d.readI32()
		if err != nil {
			return nil, err
		}
		step, err := d.readI32()
		if err != nil {
			return nil, err
		}
		a, err := d.readI32()
		if err != nil {
			return nil, err
		}
		b, err := d.readI32()
		if err != nil {
			return nil, err
		}
		c, err := d.readI32()
		if err != nil {
			return nil, err
		}
		count, err := d.readU32()
		if err != nil {
			return nil, err
		}
		points := make([]Point, 0, count)
		for i := uint32(0); i < count; i++ {
			x, err := d.readI32()
			if err != nil {
				return nil, err
			}
			y, err := d.readI32()
			if err != nil {
				return nil, err
			}
			points = append(points, Point{X: x, Y: y})
		}
		return CalculateFunctionMsg{
			EquationType: EquationType(eq),
			XFrom:        from,
			XTo:          to,
			XStep:        step,
			A:            a,
			B:            b,
			C:            c,
			Points:       points,
		}, d.finish()
	case CancelCurrentTask:
		return CancelCurrentTaskMsg{}, d.finish()
	case ProgressRange:
		min, err := d.readI32()
		if err != nil {
			return nil, err
		}
		max, err := d.readI32()
		if err != nil {
			return nil, err
		}
		return ProgressRangeMsg{Minimum: min, Maximum: max}, d.finish()
	case ProgressValue:
		v, err := d.readI32()
		if err != nil {
			return nil, err
		}
		return ProgressValueMsg{Value: v}, d.finish()
	default:
		return nil, fmt.Errorf("%w: unknown type discriminator %d", ErrCorrupted, rawType)
	}
}

// finish rejects a payload with trailing bytes past the last decoded
// field, which is itself a form of corruption (length lied about content).
func (d *decoder) finish() error {
	if d.pos != len(d.buf) {
		return fmt.Errorf("%w: trailing bytes after decode", ErrCorrupted)
	}
	return nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readU32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated u32", ErrCorrupted)
	}
	v := Order.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *decoder) readI32() (int32, error) {
	v, err := d.readU32()
	return int32(v), err
}

func (d *decoder) readString() (string, error) {
	n, err := d.readU32()
	if err != nil {
		return "", err
	}
	if d.pos+int(n) > len(d.buf) {
		return "", fmt.Errorf("%w: truncated string", ErrCorrupted)
	}
	raw := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: invalid utf-8 string", ErrCorrupted)
	}
	return string(raw), nil
}

func (d *decoder) readI32Slice() ([]int32, error) {
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	if d.pos+int(n)*4 > len(d.buf) {
		return nil, fmt.Errorf("%w: truncated int32 sequence", ErrCorrupted)
	}
	out := make([]int32, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := d.readI32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	Order.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeI32(buf *bytes.Buffer, v int32) {
	writeU32(buf, uint32(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeI32Slice(buf *bytes.Buffer, vals []int32) {
	writeU32(buf, uint32(len(vals)))
	for _, v := range vals {
		writeI32(buf, v)
	}
}
