package collector

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DeliveryOutcome is the result of one batch delivery attempt
type DeliveryOutcome int

const (
	Delivered DeliveryOutcome = iota
	Failed
)

// maxBeaconBytes mirrors the payload cap browsers apply to beacon-style
// sends; a larger body is rejected at hand-off, not on the wire
const maxBeaconBytes = 64 << 10

// BeaconSender is a fire-and-forget delivery primitive. The return value
// means "accepted for send", not "confirmed delivered" — the primitive has
// no response channel, so a true cannot distinguish lost-in-transit from
// succeeded. The retry policy is bounded for exactly this reason.
type BeaconSender interface {
	SendBeacon(endpoint string, body []byte) bool
}

// httpBeacon queues the request onto a background goroutine and reports
// acceptance only. A false return indicates local rejection (oversized
// payload), never a network failure.
type httpBeacon struct {
	client *http.Client
}

func (b *httpBeacon) SendBeacon(endpoint string, body []byte) bool {
	if len(body) > maxBeaconBytes {
		return false
	}

	go func() {
		resp, err := b.client.Post(endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			return
		}
		resp.Body.Close()
	}()

	return true
}

// Transport delivers one batch to the collection endpoint. It tries the
// fire-and-forget beacon primitive first and falls back to a synchronous
// request judged by its status code. It never panics into the caller; all
// local failures map to Failed.
type Transport struct {
	siteID   string
	endpoint string
	beacon   BeaconSender
	client   *http.Client
	log      *zap.Logger
}

// NewTransport creates a transport for one site. A nil beacon disables the
// fire-and-forget path entirely.
func NewTransport(siteID, endpoint string, beacon BeaconSender, client *http.Client, log *zap.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Transport{
		siteID:   siteID,
		endpoint: endpoint,
		beacon:   beacon,
		client:   client,
		log:      log,
	}
}

// Send delivers a batch, beacon first with synchronous fallback
func (t *Transport) Send(batch *Batch) (outcome DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Debug("transport panic converted to failure", zap.Any("panic", r))
			outcome = Failed
		}
	}()

	body, err := json.Marshal(toWire(t.siteID, batch.Events))
	if err != nil {
		t.log.Debug("batch serialization failed", zap.Error(err))
		return Failed
	}

	if t.beacon != nil {
		// A true from the beacon is treated as delivered even though the
		// primitive offers no confirmation; a false is a browser-level
		// rejection, not a network failure.
		if t.beacon.SendBeacon(t.endpoint, body) {
			return Delivered
		}
		t.log.Debug("beacon rejected batch", zap.Int("bytes", len(body)))
		return Failed
	}

	return t.sendHTTP(body)
}

// SendBeaconOnly delivers a batch using only the fire-and-forget
// primitive. It is used for the unload flush, where the synchronous
// fallback would block page teardown.
func (t *Transport) SendBeaconOnly(batch *Batch) (outcome DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Debug("transport panic converted to failure", zap.Any("panic", r))
			outcome = Failed
		}
	}()

	if t.beacon == nil {
		return Failed
	}

	body, err := json.Marshal(toWire(t.siteID, batch.Events))
	if err != nil {
		t.log.Debug("batch serialization failed", zap.Error(err))
		return Failed
	}

	if t.beacon.SendBeacon(t.endpoint, body) {
		return Delivered
	}
	return Failed
}

func (t *Transport) sendHTTP(body []byte) DeliveryOutcome {
	resp, err := t.client.Post(t.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		t.log.Debug("send failed", zap.Error(err))
		return Failed
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Delivered
	}

	t.log.Debug("send rejected", zap.Int("status", resp.StatusCode))
	return Failed
}
