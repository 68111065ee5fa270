package collector

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBatch(paths ...string) *Batch {
	events := make([]Event, 0, len(paths))
	for _, p := range paths {
		events = append(events, Event{Path: p, Timestamp: 1756036800000})
	}
	return &Batch{Events: events}
}

func TestTransportSyncDelivery(t *testing.T) {
	var received []wireEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport("site-1", srv.URL, nil, srv.Client(), zap.NewNop())

	outcome := tr.Send(testBatch("/home", "/pricing"))
	assert.Equal(t, Delivered, outcome)

	require.Len(t, received, 2)
	assert.Equal(t, "site-1", received[0].SiteID)
	assert.Equal(t, "/home", received[0].Path)
	assert.Equal(t, "/pricing", received[1].Path)
}

func TestTransportSyncRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewTransport("site-1", srv.URL, nil, srv.Client(), zap.NewNop())
	assert.Equal(t, Failed, tr.Send(testBatch("/home")))
}

func TestTransportConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tr := NewTransport("site-1", srv.URL, nil, nil, zap.NewNop())
	assert.Equal(t, Failed, tr.Send(testBatch("/home")))
}

// acceptingBeacon accepts everything without ever confirming delivery,
// which is exactly the contract of the fire-and-forget primitive
type acceptingBeacon struct {
	calls int
}

func (b *acceptingBeacon) SendBeacon(endpoint string, body []byte) bool {
	b.calls++
	return true
}

func TestTransportBeaconAcceptanceCountsAsDelivered(t *testing.T) {
	beacon := &acceptingBeacon{}

	// no server behind the endpoint; beacon acceptance alone decides
	tr := NewTransport("site-1", "http://127.0.0.1:1/track", beacon, nil, zap.NewNop())

	assert.Equal(t, Delivered, tr.Send(testBatch("/home")))
	assert.Equal(t, 1, beacon.calls)
}

func TestHTTPBeaconRejectsOversizedPayload(t *testing.T) {
	beacon := &httpBeacon{client: http.DefaultClient}
	assert.False(t, beacon.SendBeacon("http://127.0.0.1:1/track", make([]byte, maxBeaconBytes+1)))
}

func TestTransportOversizedBeaconPayloadFails(t *testing.T) {
	beacon := &httpBeacon{client: http.DefaultClient}
	tr := NewTransport("site-1", "http://127.0.0.1:1/track", beacon, nil, zap.NewNop())

	big := testBatch()
	big.Events = append(big.Events, Event{
		Path:       "/home",
		Attributes: map[string]interface{}{"blob": strings.Repeat("x", maxBeaconBytes)},
	})

	assert.Equal(t, Failed, tr.Send(big))
}

func TestSendBeaconOnlyWithoutBeacon(t *testing.T) {
	tr := NewTransport("site-1", "http://127.0.0.1:1/track", nil, nil, zap.NewNop())
	assert.Equal(t, Failed, tr.SendBeaconOnly(testBatch("/home")))
}

func TestSendBeaconOnlyAccepted(t *testing.T) {
	beacon := &acceptingBeacon{}
	tr := NewTransport("site-1", "http://127.0.0.1:1/track", beacon, nil, zap.NewNop())

	assert.Equal(t, Delivered, tr.SendBeaconOnly(testBatch("/home")))
	assert.Equal(t, 1, beacon.calls)
}
