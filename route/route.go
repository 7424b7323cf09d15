// Package route picks which server address a key should be routed to
// via consistent (jump) hashing over an ordered list of addresses, so
// that adding or removing a server at the end of the list reshuffles
// the fewest keys possible.
package route

import (
	"github.com/zeebo/xxh3"

	"github.com/go-rconn/rconn/internal"
)

// Select returns the index, in [0, addrCount), of the address that key
// should be routed to. For a single address it always returns 0.
func Select(key string, addrCount int) int {
	return internal.JumpHash(xxh3.HashString(key), addrCount)
}
