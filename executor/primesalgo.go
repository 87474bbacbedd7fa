package executor

// isPrime tests n by trial division up to floor(sqrt(n)), with 2 handled
// explicitly; n <= 1 is never prime (§4.D "Prime test"). Trial division
// is carried out in 64-bit arithmetic so d*d cannot wrap for n near the
// top of the 32-bit range.
func isPrime(n int32) bool {
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	n64 := int64(n)
	for d := int64(3); d*d <= n64; d += 2 {
		if n64%d == 0 {
			return false
		}
	}
	return true
}

// primesInRange returns the ascending primes p with from <= p <= to,
// stepping by 2 from the first odd candidate >= max(3, from) and
// handling 2 explicitly when it falls in range. The walk is carried out
// in 64-bit arithmetic so stepping past the top of the 32-bit range
// cannot wrap the loop variable back around.
func primesInRange(from, to int32) []int32 {
	var out []int32
	if from > to {
		return out
	}
	if from <= 2 && 2 <= to {
		out = append(out, 2)
	}
	start := int64(from)
	if start < 3 {
		start = 3
	}
	if start%2 == 0 {
		start++
	}
	to64 := int64(to)
	for n := start; n <= to64; n += 2 {
		if isPrime(int32(n)) {
			out = append(out, int32(n))
		}
	}
	return out
}
