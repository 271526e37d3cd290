// Package threshold decides whether a battery percentage is low enough to alert.
package threshold

import "fmt"

// Band is an inclusive percentage range that counts as low battery.
type Band struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// Default is the band used when nothing is configured.
// 0% is excluded on purpose: many platforms report 0 when the reading is unreliable.
var Default = Band{Lower: 1, Upper: 19}

// Decide reports whether percentage is inside the band.
// It has no side effects, so it can be called any number of times.
func (b Band) Decide(percentage int) bool {
	return b.Lower <= percentage && percentage <= b.Upper
}

// Validate checks that the band is usable.
func (b Band) Validate() error {
	if b.Lower < 1 {
		return fmt.Errorf("lower bound must be at least 1, got %d", b.Lower)
	}
	if b.Upper > 99 {
		return fmt.Errorf("upper bound must be at most 99, got %d", b.Upper)
	}
	if b.Lower > b.Upper {
		return fmt.Errorf("lower bound %d is greater than upper bound %d", b.Lower, b.Upper)
	}
	return nil
}

func (b Band) String() string {
	return fmt.Sprintf("%d%%-%d%%", b.Lower, b.Upper)
}
