package ratelimiter

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"sync/atomic"
	"time"
)

var (
	ulidEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)
	ulidCounter  uint64
)

// NewULID returns a time-ordered identifier for leases: 48 bits of unix
// milliseconds followed by 80 random bits.
func NewULID() string {
	var data [16]byte
	var ms [8]byte
	binary.BigEndian.PutUint64(ms[:], uint64(time.Now().UnixMilli()))
	copy(data[:6], ms[2:])
	if _, err := rand.Read(data[6:]); err != nil {
		binary.BigEndian.PutUint64(data[8:], atomic.AddUint64(&ulidCounter, 1))
	}
	return ulidEncoding.EncodeToString(data[:])
}
