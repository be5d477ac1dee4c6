package stoplight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplight/internal/domain/geo"
)

func TestBuildWorkingSetFiltersGroupsByRouteRadius(t *testing.T) {
	near := Group{ID: 1, Location: geo.Coordinate{Latitude: 40.0000, Longitude: -75.0000}}
	// ~100 m north of the route, well outside the 20 m match radius
	far := Group{ID: 2, Location: geo.Coordinate{Latitude: 40.0009, Longitude: -75.0000}}

	route := []geo.Coordinate{
		{Latitude: 39.9999, Longitude: -75.0000},
		{Latitude: 40.00001, Longitude: -75.0000}, // ~1 m from "near"
	}

	ws := BuildWorkingSet(route, []Group{near, far}, nil)

	require.Equal(t, 1, ws.Len())
	assert.Equal(t, int64(1), ws.Groups()[0].ID)
}

func TestBuildWorkingSetPreservesGroupOrder(t *testing.T) {
	a := Group{ID: 7, Location: geo.Coordinate{Latitude: 40.0, Longitude: -75.0}}
	b := Group{ID: 3, Location: geo.Coordinate{Latitude: 41.0, Longitude: -75.0}}

	route := []geo.Coordinate{a.Location, b.Location}

	ws := BuildWorkingSet(route, []Group{a, b}, nil)
	require.Equal(t, 2, ws.Len())
	assert.Equal(t, int64(7), ws.Groups()[0].ID)
	assert.Equal(t, int64(3), ws.Groups()[1].ID)
}

func TestBuildWorkingSetResolvesNearestByLookahead(t *testing.T) {
	group := Group{ID: 1, Location: geo.Coordinate{Latitude: 40.0, Longitude: -75.0}}

	closer := Stoplight{
		ID:                11,
		GroupID:           1,
		Location:          geo.Coordinate{Latitude: 40.001, Longitude: -75.0},
		LookaheadLocation: geo.Coordinate{Latitude: 40.0001, Longitude: -75.0},
	}
	farther := Stoplight{
		ID:                12,
		GroupID:           1,
		Location:          geo.Coordinate{Latitude: 40.00001, Longitude: -75.0}, // physically closest
		LookaheadLocation: geo.Coordinate{Latitude: 40.0005, Longitude: -75.0},  // but lookahead is farther
	}
	other := Stoplight{ID: 99, GroupID: 2, LookaheadLocation: geo.Coordinate{Latitude: 40.0, Longitude: -75.0}}

	ws := BuildWorkingSet([]geo.Coordinate{group.Location}, []Group{group}, []Stoplight{farther, closer, other})

	nearest, ok := ws.Nearest(1)
	require.True(t, ok)
	// selection is by lookahead distance, not physical stoplight distance
	assert.Equal(t, int64(11), nearest.ID)
}

func TestBuildWorkingSetGroupWithoutStoplightsHasNoNearest(t *testing.T) {
	group := Group{ID: 1, Location: geo.Coordinate{Latitude: 40.0, Longitude: -75.0}}

	ws := BuildWorkingSet([]geo.Coordinate{group.Location}, []Group{group}, nil)

	_, ok := ws.Nearest(1)
	assert.False(t, ok)
	assert.Equal(t, 1, ws.Len())
}
