package protocol

import "encoding/binary"

// Order is the byte order used for every integer field on the wire,
// including the frame length prefix. It is pinned at build time: the
// default build uses little-endian, the bigendian build tag switches
// every peer to big-endian. Client and server must be built with the
// same tag or framing breaks.
var Order binary.ByteOrder = binary.LittleEndian
