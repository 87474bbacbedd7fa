package executor

import "github.com/cppla/computesrv/protocol"

// tabulate evaluates f over x = from, from+step, ..., x <= to. Products
// are computed in 32-bit signed arithmetic and wrap per two's complement
// on overflow — a documented consequence of the wire format's i32 y
// field, not a case this function guards against (spec §4.D, §9).
func tabulate(eq protocol.EquationType, from, to, step, a, b, c int32) []protocol.Point {
	var out []protocol.Point
	if step < 1 {
		return out
	}
	// The loop cursor runs in 64-bit arithmetic purely so stepping past
	// the top of the 32-bit range terminates instead of wrapping the
	// loop itself; x is truncated back to int32 before every evaluation
	// so f(x) still wraps exactly as the wire format's i32 fields imply.
	to64 := int64(to)
	for x64 := int64(from); x64 <= to64; x64 += int64(step) {
		x := int32(x64)
		var y int32
		switch eq {
		case protocol.Quadratic:
			y = a*x*x + b*x + c
		default: // Linear
			y = a*x + b
		}
		out = append(out, protocol.Point{X: x, Y: y})
	}
	return out
}
