//go:build bigendian

package protocol

import "encoding/binary"

func init() {
	Order = binary.BigEndian
}
