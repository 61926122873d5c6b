package model

import "fmt"

// BodyClass groups aircraft types into narrow and wide bodies.
type BodyClass int

const (
	NarrowBody BodyClass = iota
	WideBody
)

// String returns a human-readable representation of the body class.
func (b BodyClass) String() string {
	switch b {
	case NarrowBody:
		return "narrow"
	case WideBody:
		return "wide"
	default:
		return "unknown"
	}
}

// SizeCategory is the ICAO-style wingspan category, ordered A < B < ... < F.
type SizeCategory int

const (
	SizeA SizeCategory = iota
	SizeB
	SizeC
	SizeD
	SizeE
	SizeF
)

var sizeNames = [...]string{"A", "B", "C", "D", "E", "F"}

// String returns the single-letter category name.
func (s SizeCategory) String() string {
	if s < SizeA || s > SizeF {
		return "?"
	}
	return sizeNames[s]
}

// ParseSizeCategory converts a single-letter code into a SizeCategory.
func ParseSizeCategory(code string) (SizeCategory, error) {
	for i, n := range sizeNames {
		if n == code {
			return SizeCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown size category %q", code)
}

// AircraftType describes one aircraft type in the reference data.
// Instances are immutable after ingestion.
type AircraftType struct {
	TypeCode                 string
	BodyClass                BodyClass
	SizeCategory             SizeCategory
	DefaultTurnaroundMinutes int
}

// Validate checks that the type definition is sound.
func (t AircraftType) Validate() error {
	if t.TypeCode == "" {
		return fmt.Errorf("aircraft type code is required")
	}
	if t.DefaultTurnaroundMinutes < 1 {
		return fmt.Errorf("aircraft type %s: default turnaround must be at least one minute", t.TypeCode)
	}
	return nil
}
