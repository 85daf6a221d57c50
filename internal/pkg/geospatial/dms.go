package geospatial

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidDMS is returned by ParseDMS for input it cannot read.
var ErrInvalidDMS = errors.New("invalid DMS coordinate")

// Direction is a hemisphere tag. The sign of a DMS value lives here,
// never in the degree component.
type Direction string

const (
	North Direction = "N"
	South Direction = "S"
	East  Direction = "E"
	West  Direction = "W"
)

// Negative reports whether the direction flips the sign of the decimal value.
func (d Direction) Negative() bool {
	return d == South || d == West
}

// Axis selects which pair of hemisphere tags applies.
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

// DMS is a single axis in degrees/minutes/seconds notation.
type DMS struct {
	Degrees   int       `json:"degrees"`
	Minutes   int       `json:"minutes"`
	Seconds   float64   `json:"seconds"`
	Direction Direction `json:"direction"`
}

// Decimal returns the signed decimal-degree value.
func (d DMS) Decimal() float64 {
	return DMSToDecimal(d.Degrees, d.Minutes, d.Seconds, d.Direction)
}

func (d DMS) String() string {
	return fmt.Sprintf("%d°%d'%.2f\"%s", d.Degrees, d.Minutes, d.Seconds, d.Direction)
}

// DMSToDecimal converts degrees, minutes and seconds to decimal degrees.
// Out-of-range minutes or seconds are accepted as-is.
func DMSToDecimal(degrees, minutes int, seconds float64, dir Direction) float64 {
	decimal := float64(degrees) + float64(minutes)/60 + seconds/3600
	if dir.Negative() {
		decimal = -decimal
	}
	return decimal
}

// DecimalToDMS splits the magnitude of a decimal-degree value into whole
// degrees, whole minutes and fractional seconds. negative carries the sign.
func DecimalToDMS(decimal float64) (degrees, minutes int, seconds float64, negative bool) {
	negative = decimal < 0
	abs := math.Abs(decimal)

	degrees = int(abs)
	minutesFloat := (abs - float64(degrees)) * 60
	minutes = int(minutesFloat)
	seconds = (minutesFloat - float64(minutes)) * 60
	return degrees, minutes, seconds, negative
}

// ToDMS converts a decimal value on the given axis into its DMS form.
func ToDMS(decimal float64, axis Axis) DMS {
	deg, mins, secs, neg := DecimalToDMS(decimal)

	dir := North
	switch {
	case axis == Latitude && neg:
		dir = South
	case axis == Longitude && neg:
		dir = West
	case axis == Longitude:
		dir = East
	}

	return DMS{Degrees: deg, Minutes: mins, Seconds: secs, Direction: dir}
}

// ValidateCoordinates reports whether lat is within [-90, 90] and lon within
// [-180, 180], both inclusive.
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

var dmsPattern = regexp.MustCompile(
	`^\s*(\d{1,3})\s*(?:°|d|:|\s)\s*(\d{1,2})\s*(?:'|′|m|:|\s)\s*(\d{1,2}(?:\.\d+)?)\s*(?:"|″|''|s)?\s*([NSEWnsew])\s*$`,
)

// ParseDMS reads a coordinate such as 26°18'52.65"N, 26 18 52.65 N or
// 26:18:52.65N.
func ParseDMS(s string) (DMS, error) {
	m := dmsPattern.FindStringSubmatch(s)
	if m == nil {
		return DMS{}, fmt.Errorf("%w: %q", ErrInvalidDMS, s)
	}

	deg, err := strconv.Atoi(m[1])
	if err != nil {
		return DMS{}, fmt.Errorf("%w: degrees: %v", ErrInvalidDMS, err)
	}
	mins, err := strconv.Atoi(m[2])
	if err != nil {
		return DMS{}, fmt.Errorf("%w: minutes: %v", ErrInvalidDMS, err)
	}
	secs, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return DMS{}, fmt.Errorf("%w: seconds: %v", ErrInvalidDMS, err)
	}

	return DMS{
		Degrees:   deg,
		Minutes:   mins,
		Seconds:   secs,
		Direction: Direction(strings.ToUpper(m[4])),
	}, nil
}

// ParseDMSAxis parses like ParseDMS and additionally checks that the
// hemisphere tag belongs to the requested axis.
func ParseDMSAxis(s string, axis Axis) (DMS, error) {
	d, err := ParseDMS(s)
	if err != nil {
		return DMS{}, err
	}
	switch axis {
	case Latitude:
		if d.Direction != North && d.Direction != South {
			return DMS{}, fmt.Errorf("%w: latitude needs N or S, got %s", ErrInvalidDMS, d.Direction)
		}
	case Longitude:
		if d.Direction != East && d.Direction != West {
			return DMS{}, fmt.Errorf("%w: longitude needs E or W, got %s", ErrInvalidDMS, d.Direction)
		}
	}
	return d, nil
}
