// Package battery reads the current battery percentage.
package battery

import (
	"errors"
	"math"
)

// Unknown is reported when the battery level cannot be determined.
const Unknown = -1

// ErrUnavailable is returned when no battery state could be read.
var ErrUnavailable = errors.New("battery state unavailable")

// Reader supplies the current battery percentage on demand.
type Reader interface {
	// Read returns a percentage in [0,100], or Unknown with a non-nil error.
	Read() (int, error)
}

// ReaderFunc adapts a plain function to a Reader.
type ReaderFunc func() (int, error)

func (f ReaderFunc) Read() (int, error) { return f() }

// Percentage converts a raw (level, scale) pair into a rounded percentage.
// A non-positive scale or a negative level yields Unknown.
func Percentage(level, scale float64) int {
	if scale <= 0 || level < 0 || math.IsNaN(level) || math.IsNaN(scale) {
		return Unknown
	}
	p := int(math.Round(level * 100 / scale))
	// Some batteries report a current charge slightly above the last full charge.
	if p > 100 {
		p = 100
	}
	return p
}
