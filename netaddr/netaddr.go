// Package netaddr holds the AddressPair value shared by the connection
// endpoint, task executor, and dispatcher (spec §3).
package netaddr

import "fmt"

// AddressPair identifies a live authenticated client by the peer address
// of its socket. Equality is component-wise, making it usable as a map
// key for the per-owner task index.
type AddressPair struct {
	IP   string
	Port int
}

func (a AddressPair) String() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}
