// Package network parses the text topology description used to answer
// inter-core RTT queries.
package network

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nexus-arch/coresim/internal/logging"
	"golang.org/x/time/rate"
)

// edgeKey is an unordered pair so edges parsed in either direction hit
// the same table entry (the topology is symmetric, per spec §6).
type edgeKey struct{ a, b string }

func newEdgeKey(a, b string) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Topology holds delay-in-cycles between named endpoints.
type Topology struct {
	edges   map[edgeKey]uint64
	log     *logging.Logger
	limiter *rate.Limiter
}

// New builds an empty Topology. The missing-edge warning path is
// rate-limited to 1/sec with a burst of 5, since a workload hammering a
// missing endpoint every phase would otherwise flood the log.
func New(log *logging.Logger) *Topology {
	return &Topology{
		edges:   make(map[edgeKey]uint64),
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Parse reads "src dst delay" lines (whitespace-separated, blank lines
// and '#'-prefixed comments ignored) into the topology.
func Parse(r io.Reader, log *logging.Logger) (*Topology, error) {
	t := New(log)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("network: line %d: expected \"src dst delay\", got %q", lineNo, line)
		}
		delay, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("network: line %d: invalid delay %q: %w", lineNo, fields[2], err)
		}
		t.edges[newEdgeKey(fields[0], fields[1])] = delay
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("network: scanning topology: %w", err)
	}
	return t, nil
}

// RTT returns the round-trip delay between src and dst. A missing edge
// returns 0 and logs a rate-limited warning rather than erroring, per
// spec §6.
func (t *Topology) RTT(src, dst string) uint64 {
	if src == dst {
		return 0
	}
	if d, ok := t.edges[newEdgeKey(src, dst)]; ok {
		return d
	}
	if t.log != nil && t.limiter.Allow() {
		t.log.Warn("network: missing topology edge", logging.String("src", src), logging.String("dst", dst))
	}
	return 0
}

// NumEdges reports the number of distinct edges parsed.
func (t *Topology) NumEdges() int { return len(t.edges) }
