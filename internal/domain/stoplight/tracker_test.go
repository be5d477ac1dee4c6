package stoplight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplight/internal/domain/geo"
)

// Offsets in degrees of latitude near 40N: 0.00045 deg ~ 50 m, 0.0018 deg ~ 200 m.
// The boundary pair straddles the 100 m activation radius by ~10 cm on each side
// (one degree of latitude is ~111195 m of meridian arc).
const (
	offset50m  = 0.00045
	offset200m = 0.0018

	offsetJustInside  = 0.00089842 // ~99.9 m
	offsetJustOutside = 0.00090022 // ~100.1 m
)

var (
	groupOne = Group{ID: 1, Location: geo.Coordinate{Latitude: 40.0000, Longitude: -75.0000}}
	groupTwo = Group{ID: 2, Location: geo.Coordinate{Latitude: 40.0003, Longitude: -75.0000}}

	lightOne = Stoplight{
		ID:                11,
		GroupID:           1,
		Location:          geo.Coordinate{Latitude: 40.00001, Longitude: -75.00001},
		LookaheadLocation: geo.Coordinate{Latitude: 40.00002, Longitude: -75.00002},
	}
	lightTwo = Stoplight{
		ID:                21,
		GroupID:           2,
		Location:          geo.Coordinate{Latitude: 40.00031, Longitude: -75.00001},
		LookaheadLocation: geo.Coordinate{Latitude: 40.00032, Longitude: -75.00002},
	}
)

func trackerWith(groups []Group, stoplights []Stoplight) *ProximityTracker {
	// route passes directly over every group so all of them join the working set
	route := make([]geo.Coordinate, 0, len(groups))
	for _, g := range groups {
		route = append(route, g.Location)
	}
	return NewProximityTracker(BuildWorkingSet(route, groups, stoplights))
}

func at(group Group, latOffset float64) geo.Coordinate {
	return geo.Coordinate{Latitude: group.Location.Latitude + latOffset, Longitude: group.Location.Longitude}
}

func TestUpdateEnterThenExit(t *testing.T) {
	tracker := trackerWith([]Group{groupOne}, []Stoplight{lightOne})

	// approach from 200 m out: no transition yet
	assert.Empty(t, tracker.Update(at(groupOne, offset200m)))

	// enter the radius
	events := tracker.Update(at(groupOne, offset50m))
	require.Equal(t, []ActivationEvent{{Activate: 1, GroupID: 1, StoplightID: 11}}, events)

	// stay inside: idempotent, no event
	assert.Empty(t, tracker.Update(at(groupOne, offset50m)))

	// leave the radius
	events = tracker.Update(at(groupOne, offset200m))
	require.Equal(t, []ActivationEvent{{Activate: 0, GroupID: 1, StoplightID: 11}}, events)

	// stay outside: no event
	assert.Empty(t, tracker.Update(at(groupOne, offset200m)))
}

func TestUpdateBoundaryIsInclusiveOnTheActiveSide(t *testing.T) {
	tracker := trackerWith([]Group{groupOne}, []Stoplight{lightOne})

	// sanity: the offsets really land on opposite sides of the radius
	require.LessOrEqual(t,
		geo.DistanceMeters(groupOne.Location, at(groupOne, offsetJustInside)), ActivationRadiusMeters)
	require.Greater(t,
		geo.DistanceMeters(groupOne.Location, at(groupOne, offsetJustOutside)), ActivationRadiusMeters)

	// d <= 100 activates
	events := tracker.Update(at(groupOne, offsetJustInside))
	require.Equal(t, []ActivationEvent{{Activate: 1, GroupID: 1, StoplightID: 11}}, events)

	// d > 100 deactivates
	events = tracker.Update(at(groupOne, offsetJustOutside))
	require.Equal(t, []ActivationEvent{{Activate: 0, GroupID: 1, StoplightID: 11}}, events)

	// hovering on the rim flaps: every crossing emits, there is no hysteresis band
	events = tracker.Update(at(groupOne, offsetJustInside))
	require.Equal(t, []ActivationEvent{{Activate: 1, GroupID: 1, StoplightID: 11}}, events)
	events = tracker.Update(at(groupOne, offsetJustOutside))
	require.Equal(t, []ActivationEvent{{Activate: 0, GroupID: 1, StoplightID: 11}}, events)
}

func TestUpdateTwoGroupsInRangeEmitsInWorkingSetOrder(t *testing.T) {
	tracker := trackerWith([]Group{groupOne, groupTwo}, []Stoplight{lightOne, lightTwo})

	// groupTwo sits ~33 m north of groupOne, so a point between them is inside both radii
	events := tracker.Update(geo.Coordinate{Latitude: 40.00015, Longitude: -75.0000})
	require.Equal(t, []ActivationEvent{
		{Activate: 1, GroupID: 1, StoplightID: 11},
		{Activate: 1, GroupID: 2, StoplightID: 21},
	}, events)
	assert.Equal(t, 2, tracker.ActiveCount())
}

func TestUpdateSkipsGroupWithoutResolvedStoplight(t *testing.T) {
	// groupTwo has no stoplights at all
	tracker := trackerWith([]Group{groupOne, groupTwo}, []Stoplight{lightOne})

	events := tracker.Update(geo.Coordinate{Latitude: 40.00015, Longitude: -75.0000})
	require.Equal(t, []ActivationEvent{{Activate: 1, GroupID: 1, StoplightID: 11}}, events)
	assert.Equal(t, 1, tracker.ActiveCount())
}

func TestEndSessionDrainsActiveGroupsInGroupIDOrder(t *testing.T) {
	tracker := trackerWith([]Group{groupTwo, groupOne}, []Stoplight{lightOne, lightTwo})

	_ = tracker.Update(geo.Coordinate{Latitude: 40.00015, Longitude: -75.0000})
	require.Equal(t, 2, tracker.ActiveCount())

	events := tracker.EndSession()
	require.Equal(t, []ActivationEvent{
		{Activate: 0, GroupID: 1, StoplightID: 11},
		{Activate: 0, GroupID: 2, StoplightID: 21},
	}, events)
	assert.Equal(t, 0, tracker.ActiveCount())

	// second call is a no-op
	assert.Empty(t, tracker.EndSession())
}

func TestEndSessionFullyResetsState(t *testing.T) {
	tracker := trackerWith([]Group{groupOne}, []Stoplight{lightOne})

	_ = tracker.Update(at(groupOne, offset50m))
	_ = tracker.EndSession()

	// a fresh in-radius position re-activates from scratch
	events := tracker.Update(at(groupOne, offset50m))
	require.Equal(t, []ActivationEvent{{Activate: 1, GroupID: 1, StoplightID: 11}}, events)
}

func TestAtMostOneOutstandingActivationPerGroup(t *testing.T) {
	tracker := trackerWith([]Group{groupOne}, []Stoplight{lightOne})

	outstanding := 0
	positions := []geo.Coordinate{
		at(groupOne, offset200m),
		at(groupOne, offset50m),
		at(groupOne, offset50m),
		at(groupOne, offset200m),
		at(groupOne, offset50m),
		at(groupOne, offset200m),
		at(groupOne, offset200m),
	}
	for _, p := range positions {
		for _, ev := range tracker.Update(p) {
			if ev.Activate == 1 {
				outstanding++
			} else {
				outstanding--
			}
			assert.Contains(t, []int{0, 1}, outstanding)
		}
	}
	assert.Equal(t, 0, outstanding)
}
