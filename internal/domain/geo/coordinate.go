package geo

import "errors"

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Coordinate is a WGS84 point. It is a plain value type; copies are cheap and
// everything downstream (working sets, tracker state) stores it by value.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// NewCoordinate validates ranges and returns the point.
func NewCoordinate(latitude, longitude float64) (Coordinate, error) {
	coordinate := Coordinate{Latitude: latitude, Longitude: longitude}
	if err := coordinate.Validate(); err != nil {
		return Coordinate{}, err
	}
	return coordinate, nil
}

// Validate checks latitude/longitude ranges.
func (coordinate Coordinate) Validate() error {
	if coordinate.Latitude < -90 || coordinate.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if coordinate.Longitude < -180 || coordinate.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}
