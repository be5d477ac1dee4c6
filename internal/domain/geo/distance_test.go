package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMetersZeroForCoincidentPoints(t *testing.T) {
	p := Coordinate{Latitude: 40.0, Longitude: -75.0}
	assert.Equal(t, 0.0, DistanceMeters(p, p))
}

func TestDistanceMetersSymmetric(t *testing.T) {
	a := Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	b := Coordinate{Latitude: 51.5074, Longitude: -0.1278}
	assert.Equal(t, DistanceMeters(a, b), DistanceMeters(b, a))
}

func TestDistanceMetersKnownDistances(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Coordinate
		meters float64
		delta  float64
	}{
		{
			name:   "one degree of latitude",
			a:      Coordinate{Latitude: 40.0, Longitude: -75.0},
			b:      Coordinate{Latitude: 41.0, Longitude: -75.0},
			meters: 111195,
			delta:  50,
		},
		{
			name:   "city block scale",
			a:      Coordinate{Latitude: 40.0000, Longitude: -75.0000},
			b:      Coordinate{Latitude: 40.0009, Longitude: -75.0000},
			meters: 100,
			delta:  1,
		},
		{
			name:   "across the antimeridian",
			a:      Coordinate{Latitude: 0, Longitude: 179.9995},
			b:      Coordinate{Latitude: 0, Longitude: -179.9995},
			meters: 111.2,
			delta:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.meters, DistanceMeters(tt.a, tt.b), tt.delta)
		})
	}
}

func TestNewCoordinateValidation(t *testing.T) {
	_, err := NewCoordinate(91, 0)
	require.ErrorIs(t, err, ErrInvalidLatitude)

	_, err = NewCoordinate(0, -181)
	require.ErrorIs(t, err, ErrInvalidLongitude)

	c, err := NewCoordinate(40.0, -75.0)
	require.NoError(t, err)
	assert.Equal(t, 40.0, c.Latitude)
	assert.Equal(t, -75.0, c.Longitude)
}
