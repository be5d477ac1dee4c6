package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/logger"
)

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	groups     []stoplight.Group
	stoplights []stoplight.Stoplight
	err        error
}

func (f *fakeRepo) ListGroups(context.Context) ([]stoplight.Group, error) {
	return f.groups, f.err
}

func (f *fakeRepo) ListStoplights(context.Context) ([]stoplight.Stoplight, error) {
	return f.stoplights, f.err
}

func (f *fakeRepo) SeedGroups(context.Context, []stoplight.Group) error          { return nil }
func (f *fakeRepo) SeedStoplights(context.Context, []stoplight.Stoplight) error { return nil }

func testRepo() *fakeRepo {
	return &fakeRepo{
		groups: []stoplight.Group{
			{ID: 1, Location: geo.Coordinate{Latitude: 40.0, Longitude: -75.0}},
			{ID: 2, Location: geo.Coordinate{Latitude: 41.0, Longitude: -75.0}}, // ~111 km away
		},
		stoplights: []stoplight.Stoplight{
			{ID: 11, GroupID: 1, Location: geo.Coordinate{Latitude: 40.00001, Longitude: -75.0},
				LookaheadLocation: geo.Coordinate{Latitude: 40.00002, Longitude: -75.0}},
		},
	}
}

func TestComputeWorkingSetStoresPerSubject(t *testing.T) {
	svc := NewRouteService(logger.New("test"), fakeUOW{}, testRepo())
	ctx := context.Background()

	route := []geo.Coordinate{{Latitude: 40.0, Longitude: -75.0}}
	ws, err := svc.ComputeWorkingSet(ctx, "client-1", route)
	require.NoError(t, err)
	assert.Equal(t, 1, ws.Len()) // only the group the route passes

	got, ok := svc.WorkingSetFor("client-1")
	require.True(t, ok)
	assert.Same(t, ws, got)

	_, ok = svc.WorkingSetFor("client-2")
	assert.False(t, ok)
}

func TestComputeWorkingSetReplacesPrevious(t *testing.T) {
	svc := NewRouteService(logger.New("test"), fakeUOW{}, testRepo())
	ctx := context.Background()

	first, err := svc.ComputeWorkingSet(ctx, "client-1", []geo.Coordinate{{Latitude: 40.0, Longitude: -75.0}})
	require.NoError(t, err)
	require.Equal(t, 1, first.Len())

	// a route far from every group yields an empty working set
	second, err := svc.ComputeWorkingSet(ctx, "client-1", []geo.Coordinate{{Latitude: 10.0, Longitude: 10.0}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Len())

	got, ok := svc.WorkingSetFor("client-1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestComputeWorkingSetRejectsEmptyRoute(t *testing.T) {
	svc := NewRouteService(logger.New("test"), fakeUOW{}, testRepo())

	_, err := svc.ComputeWorkingSet(context.Background(), "client-1", nil)
	assert.ErrorIs(t, err, ErrEmptyRoute)
}

func TestComputeWorkingSetRejectsOutOfRangeCoordinate(t *testing.T) {
	svc := NewRouteService(logger.New("test"), fakeUOW{}, testRepo())

	_, err := svc.ComputeWorkingSet(context.Background(), "client-1",
		[]geo.Coordinate{{Latitude: 91.0, Longitude: 0.0}})
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}

func TestComputeWorkingSetPropagatesRepoError(t *testing.T) {
	repo := testRepo()
	repo.err = errors.New("connection refused")
	svc := NewRouteService(logger.New("test"), fakeUOW{}, repo)

	_, err := svc.ComputeWorkingSet(context.Background(), "client-1",
		[]geo.Coordinate{{Latitude: 40.0, Longitude: -75.0}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")

	// failed compute never leaves a stale working set behind
	_, ok := svc.WorkingSetFor("client-1")
	assert.False(t, ok)
}
