package threshold

import "testing"

func TestBandDecide(t *testing.T) {
	for p := -1; p <= 100; p++ {
		want := p >= 1 && p <= 19
		if got := Default.Decide(p); got != want {
			t.Errorf("Decide(%d) = %v, want %v", p, got, want)
		}
	}
}

func TestBandDecideBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		percentage int
		want       bool
	}{
		{name: "unknown sentinel", percentage: -1, want: false},
		{name: "zero is unreliable", percentage: 0, want: false},
		{name: "lower bound", percentage: 1, want: true},
		{name: "upper bound", percentage: 19, want: true},
		{name: "just above", percentage: 20, want: false},
		{name: "full", percentage: 100, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Default.Decide(tt.percentage); got != tt.want {
				t.Errorf("Decide(%d) = %v, want %v", tt.percentage, got, tt.want)
			}
			// Deciding twice must give the same answer.
			if again := Default.Decide(tt.percentage); again != tt.want {
				t.Errorf("second Decide(%d) = %v, want %v", tt.percentage, again, tt.want)
			}
		})
	}
}

func TestBandValidate(t *testing.T) {
	tests := []struct {
		name    string
		band    Band
		wantErr bool
	}{
		{name: "default", band: Default},
		{name: "single value", band: Band{Lower: 5, Upper: 5}},
		{name: "includes zero", band: Band{Lower: 0, Upper: 19}, wantErr: true},
		{name: "includes full", band: Band{Lower: 1, Upper: 100}, wantErr: true},
		{name: "inverted", band: Band{Lower: 30, Upper: 10}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.band.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
