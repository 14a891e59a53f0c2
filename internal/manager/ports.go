package manager

import (
	"math/rand/v2"
	"net"
	"strconv"
)

// portAllocAttempts bounds the random probe loop. The value matches the
// size of the collision window we are willing to tolerate before reporting
// exhaustion; with a default range of 1000 ports it gives up long before
// the range is truly scanned, which keeps allocation O(1).
const portAllocAttempts = 32

// PortAllocator picks unused TCP ports from a fixed range. Ports already
// recorded on a persisted session are passed in as the exclusion set so a
// stopped session's bookmarked URL is never handed to another session.
type PortAllocator struct {
	low  int
	high int
	// probe reports whether the port can currently be bound on the host.
	// Overridable in tests.
	probe func(port int) bool
}

func NewPortAllocator(low, high int) *PortAllocator {
	if high <= low {
		high = low + 1
	}
	return &PortAllocator{low: low, high: high, probe: portFree}
}

// Allocate returns a port in [low, high) that is neither excluded nor
// (best-effort) currently bound on the host.
func (a *PortAllocator) Allocate(excluding map[int]struct{}) (int, error) {
	for attempt := 0; attempt < portAllocAttempts; attempt++ {
		port := a.low + rand.IntN(a.high-a.low)
		if _, taken := excluding[port]; taken {
			continue
		}
		if !a.probe(port) {
			continue
		}
		return port, nil
	}
	return 0, &PortExhaustionError{Low: a.low, High: a.high, Attempts: portAllocAttempts}
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
