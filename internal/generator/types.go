// Package generator produces synthetic access logs for load and
// end-to-end testing.
package generator

import (
	"io"
	"math/rand/v2"
)

// Generator produces synthetic log lines.
type Generator interface {
	// Init initializes the generator with a per-instance random source
	// This eliminates lock contention on the global rand source
	Init(r *rand.Rand)

	// WriteLine writes a single line, including its newline, to w
	WriteLine(w io.Writer) error

	// Description returns a human-readable description of the data format
	Description() string
}
