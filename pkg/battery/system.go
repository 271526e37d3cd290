package battery

import (
	"errors"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
)

// System reads the battery through the operating system.
type System struct{}

var _ Reader = System{}

// Read returns the charge of the first battery that reports usable values.
func (System) Read() (int, error) {
	bat, err := first()
	if err != nil {
		return Unknown, err
	}

	p := Percentage(bat.Current, bat.Full)
	if p == Unknown {
		return Unknown, ErrUnavailable
	}
	return p, nil
}

// Details returns the raw information of the first battery.
func (System) Details() (*battery.Battery, error) {
	bat, err := first()
	if err != nil {
		return nil, err
	}
	if bat.State == battery.Discharging {
		bat.ChargeRate = -bat.ChargeRate
	}
	return bat, nil
}

func first() (*battery.Battery, error) {
	batteries, err := battery.GetAll()
	if err != nil {
		// Errors carries one entry per battery, nil for those read successfully.
		var partial battery.Errors
		if !errors.As(err, &partial) {
			return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
		}
		for i, e := range partial {
			if e == nil && i < len(batteries) && batteries[i] != nil {
				return batteries[i], nil
			}
		}
		return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
	}

	if len(batteries) == 0 || batteries[0] == nil {
		return nil, pkgerrors.Wrap(ErrUnavailable, "no batteries found")
	}

	return batteries[0], nil
}
