// Package types holds the daemon API payloads shared by the daemon and client packages.
package types

import "strconv"

// BatteryStatus is the response of GET /battery.
type BatteryStatus struct {
	// Percentage is -1 when the level is unknown.
	Percentage int  `json:"percentage"`
	Known      bool `json:"known"`
	// Low reports whether Percentage is inside the configured band.
	Low bool `json:"low"`

	State      string  `json:"state,omitempty"`
	Current    float64 `json:"current,omitempty"`
	Full       float64 `json:"full,omitempty"`
	Design     float64 `json:"design,omitempty"`
	ChargeRate float64 `json:"chargeRate,omitempty"`
	Voltage    float64 `json:"voltage,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Label renders the percentage the way status displays show it.
func (b BatteryStatus) Label() string {
	if !b.Known || b.Percentage < 0 {
		return "--%"
	}
	return strconv.Itoa(b.Percentage) + "%"
}
