package simulation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/contracts"
	"stoplight/internal/general/logger"
)

func bridgeService(broadcaster *fakeBroadcaster) *simulationService {
	svc := NewSimulationService(logger.New("test"), &fakeRoutes{}, broadcaster, &fakePublisher{}, nil, "origin-1")
	return svc.(*simulationService)
}

func activationBody(t *testing.T, producer string) []byte {
	t.Helper()
	body, err := json.Marshal(contracts.ActivationMessage{
		SessionID: "client-9",
		Event:     stoplight.ActivationEvent{Activate: 1, GroupID: 1, StoplightID: 11},
		Envelope:  contracts.Envelope{Producer: producer},
	})
	require.NoError(t, err)
	return body
}

func TestRelayActivationDeliversRemoteMessages(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	svc := bridgeService(broadcaster)

	err := svc.relayActivation(context.Background(), activationBody(t, "origin-2"))
	require.NoError(t, err)

	// local devices receive the bare wire shape, not the broker envelope
	require.Len(t, broadcaster.published, 1)
	assert.JSONEq(t, `{"activate":1,"groupID":1,"stoplightID":11}`, string(broadcaster.published[0]))
}

func TestRelayActivationDropsOwnMessages(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	svc := bridgeService(broadcaster)

	// the originating session already broadcast locally; relaying again would
	// deliver every event twice on the producing instance
	err := svc.relayActivation(context.Background(), activationBody(t, "origin-1"))
	require.NoError(t, err)
	assert.Empty(t, broadcaster.published)
}

func TestRelayActivationRejectsMalformedBody(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	svc := bridgeService(broadcaster)

	err := svc.relayActivation(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.Empty(t, broadcaster.published)
}
