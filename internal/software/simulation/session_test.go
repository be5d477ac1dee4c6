package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/contracts"
	"stoplight/internal/general/logger"
	"stoplight/internal/ports"
)

// ----- fakes -----

type fakeRoutes struct {
	workingSet *stoplight.WorkingSet
}

func (f *fakeRoutes) ComputeWorkingSet(_ context.Context, _ string, _ []geo.Coordinate) (*stoplight.WorkingSet, error) {
	return f.workingSet, nil
}

func (f *fakeRoutes) WorkingSetFor(_ string) (*stoplight.WorkingSet, bool) {
	return f.workingSet, f.workingSet != nil
}

type fakeBroadcaster struct {
	published [][]byte
}

func (f *fakeBroadcaster) Join(string, ports.BroadcastMember)  {}
func (f *fakeBroadcaster) Leave(string, ports.BroadcastMember) {}
func (f *fakeBroadcaster) Publish(_ context.Context, _ string, payload []byte) {
	f.published = append(f.published, payload)
}

type fakeSink struct {
	sent [][]byte
	fail bool
}

func (f *fakeSink) Send(payload []byte) error {
	if f.fail {
		return errors.New("connection closing")
	}
	f.sent = append(f.sent, payload)
	return nil
}

type fakePublisher struct {
	bodies [][]byte
}

func (f *fakePublisher) Publish(_, _ string, body []byte) error {
	f.bodies = append(f.bodies, body)
	return nil
}

// ----- helpers -----

var testGroup = stoplight.Group{ID: 1, Location: geo.Coordinate{Latitude: 40.0, Longitude: -75.0}}

var testLight = stoplight.Stoplight{
	ID:                11,
	GroupID:           1,
	Location:          geo.Coordinate{Latitude: 40.00001, Longitude: -75.0},
	LookaheadLocation: geo.Coordinate{Latitude: 40.00002, Longitude: -75.0},
}

func testWorkingSet() *stoplight.WorkingSet {
	return stoplight.BuildWorkingSet(
		[]geo.Coordinate{testGroup.Location},
		[]stoplight.Group{testGroup},
		[]stoplight.Stoplight{testLight},
	)
}

func newTestSession(ws *stoplight.WorkingSet) (ports.SimulationSession, *fakeSink, *fakeBroadcaster, *fakePublisher) {
	echo := &fakeSink{}
	broadcaster := &fakeBroadcaster{}
	pub := &fakePublisher{}

	svc := NewSimulationService(logger.New("test"), &fakeRoutes{workingSet: ws}, broadcaster, pub, nil, "origin-1")
	session := svc.NewSession(context.Background(), "client-1", echo)

	return session, echo, broadcaster, pub
}

func positionFrame(lat, lng float64) []byte {
	return fmt.Appendf(nil, `{"type":"position","data":{"coordinates":{"lat":%v,"lng":%v}}}`, lat, lng)
}

// ----- tests -----

func TestSessionEmitsToEchoAndBroadcast(t *testing.T) {
	session, echo, broadcaster, pub := newTestSession(testWorkingSet())
	ctx := context.Background()

	session.HandleFrame(ctx, positionFrame(40.0, -75.0))

	require.Len(t, echo.sent, 1)
	require.Len(t, broadcaster.published, 1)
	require.Len(t, pub.bodies, 1)

	// echo and broadcast carry the bare wire shape
	assert.JSONEq(t, `{"activate":1,"groupID":1,"stoplightID":11}`, string(echo.sent[0]))
	assert.Equal(t, echo.sent[0], broadcaster.published[0])

	// broker message wraps the event with session metadata
	var msg contracts.ActivationMessage
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, "client-1", msg.SessionID)
	assert.Equal(t, "origin-1", msg.Producer)
	assert.Equal(t, stoplight.ActivationEvent{Activate: 1, GroupID: 1, StoplightID: 11}, msg.Event)
}

func TestSessionFailingEchoStillBroadcasts(t *testing.T) {
	ws := testWorkingSet()
	echo := &fakeSink{fail: true}
	broadcaster := &fakeBroadcaster{}
	svc := NewSimulationService(logger.New("test"), &fakeRoutes{workingSet: ws}, broadcaster, &fakePublisher{}, nil, "origin-1")
	session := svc.NewSession(context.Background(), "client-1", echo)

	session.HandleFrame(context.Background(), positionFrame(40.0, -75.0))

	assert.Len(t, broadcaster.published, 1)
}

func TestSessionMalformedFrameIsDropped(t *testing.T) {
	session, echo, broadcaster, _ := newTestSession(testWorkingSet())
	ctx := context.Background()

	session.HandleFrame(ctx, []byte(`{"type":"position","data":{"coordinates":{}}}`))
	session.HandleFrame(ctx, []byte(`not json`))
	session.HandleFrame(ctx, []byte(`{"lat":40.0,"lng":-75.0}`))

	assert.Empty(t, echo.sent)
	assert.Empty(t, broadcaster.published)

	// state untouched: entering range still produces a fresh activation
	session.HandleFrame(ctx, positionFrame(40.0, -75.0))
	assert.Len(t, echo.sent, 1)
}

func TestSessionEndSimulationDrainsAndResets(t *testing.T) {
	session, echo, _, _ := newTestSession(testWorkingSet())
	ctx := context.Background()

	session.HandleFrame(ctx, positionFrame(40.0, -75.0))
	require.Len(t, echo.sent, 1)

	session.HandleFrame(ctx, []byte(`{"type":"end_simulation"}`))
	require.Len(t, echo.sent, 2)
	assert.JSONEq(t, `{"activate":0,"groupID":1,"stoplightID":11}`, string(echo.sent[1]))

	// a later in-radius position restarts the session from scratch
	session.HandleFrame(ctx, positionFrame(40.0, -75.0))
	require.Len(t, echo.sent, 3)
	assert.JSONEq(t, `{"activate":1,"groupID":1,"stoplightID":11}`, string(echo.sent[2]))
}

func TestSessionCloseDeactivatesExactlyOnce(t *testing.T) {
	session, echo, broadcaster, _ := newTestSession(testWorkingSet())
	ctx := context.Background()

	session.HandleFrame(ctx, positionFrame(40.0, -75.0))
	require.Len(t, echo.sent, 1)

	session.Close(ctx)
	require.Len(t, echo.sent, 2)
	require.Len(t, broadcaster.published, 2)

	// second close emits nothing
	session.Close(ctx)
	assert.Len(t, echo.sent, 2)
	assert.Len(t, broadcaster.published, 2)
}

func TestSessionWithoutWorkingSetIgnoresPositions(t *testing.T) {
	session, echo, broadcaster, _ := newTestSession(nil)

	session.HandleFrame(context.Background(), positionFrame(40.0, -75.0))

	assert.Empty(t, echo.sent)
	assert.Empty(t, broadcaster.published)
}
