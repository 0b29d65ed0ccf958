package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/w3f-grants-archive/validated-streams/chain"
	"github.com/w3f-grants-archive/validated-streams/network/gossip"
	"github.com/w3f-grants-archive/validated-streams/proofs"
)

type fakeNodeInfo struct{}

func (fakeNodeInfo) HostID() peer.ID { return peer.ID("status-test-host") }

func (fakeNodeInfo) ListenAddrs() []ma.Multiaddr {
	return []ma.Multiaddr{ma.StringCast("/ip4/127.0.0.1/tcp/7000")}
}

func (fakeNodeInfo) PeerCount() int { return 2 }

func newStatusFixture(t *testing.T) (*httptest.Server, *fakeValidator, proofs.Store, *chain.Ledger) {
	t.Helper()

	store := proofs.NewMemStore()
	ledger := chain.NewLedger()
	validator := &fakeValidator{reply: "event witnessed (1 of 3 attestations)"}

	srv := NewStatusServer(0, StatusConfig{
		Session:    fakeNodeInfo{},
		Metrics:    gossip.NewMetrics(),
		Store:      store,
		Ledger:     ledger,
		Pool:       chain.NewMemPool(16),
		Validator:  validator,
		Validators: 3,
		Target:     3,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { store.Close() })

	return ts, validator, store, ledger
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestStatusEndpointReportsNodeState(t *testing.T) {
	ts, _, _, _ := newStatusFixture(t)

	body := getJSON(t, ts.URL+"/api/v1/status", http.StatusOK)
	require.Equal(t, gossip.TopicWitnessedEvents, body["topic"])
	require.EqualValues(t, 2, body["peers"])
	require.EqualValues(t, 3, body["validators"])
	require.EqualValues(t, 3, body["attestation_target"])
	require.EqualValues(t, 0, body["chain_height"])
	require.NotEmpty(t, body["node_id"])
	require.Contains(t, body, "pool")
	require.Contains(t, body, "network")
}

func TestEventEndpointReportsAttestations(t *testing.T) {
	ts, _, store, ledger := newStatusFixture(t)

	id := gossip.NewEventID([]byte("observed frame"))
	witness := gossip.WitnessedEvent{
		Signature: bytes.Repeat([]byte{0x01}, 64),
		PubKey:    bytes.Repeat([]byte{0x02}, 32),
		EventID:   id,
	}
	_, err := store.Add(&witness)
	require.NoError(t, err)

	body := getJSON(t, ts.URL+"/api/v1/events/"+id.String(), http.StatusOK)
	require.Equal(t, id.String(), body["id"])
	require.EqualValues(t, 1, body["attestations"])
	require.Equal(t, false, body["included"])
	require.NotContains(t, body, "inclusion_height")

	ledger.Commit([]*chain.EventTx{chain.NewEventTx(id, map[string][]byte{"w": {0x01}})})

	body = getJSON(t, ts.URL+"/api/v1/events/"+id.String(), http.StatusOK)
	require.Equal(t, true, body["included"])
	require.EqualValues(t, 1, body["inclusion_height"])
}

func TestEventEndpointRejectsMalformedID(t *testing.T) {
	ts, _, _, _ := newStatusFixture(t)

	for _, id := range []string{"zz", "abcd", fmt.Sprintf("%066x", 1)} {
		body := getJSON(t, ts.URL+"/api/v1/events/"+id, http.StatusBadRequest)
		require.Contains(t, body, "error")
	}
}

func TestSubmitEventEndpoint(t *testing.T) {
	ts, validator, _, _ := newStatusFixture(t)

	id := gossip.NewEventID([]byte("client event"))
	payload, err := json.Marshal(map[string]string{"id": id.String()})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, id.String(), body["id"])
	require.Equal(t, "event witnessed (1 of 3 attestations)", body["status"])
	require.Equal(t, 1, validator.calls())
	require.Equal(t, id, validator.lastSeen())
}

func TestSubmitEventEndpointErrors(t *testing.T) {
	ts, validator, _, _ := newStatusFixture(t)

	resp, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewReader([]byte(`{"id":"nope"}`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 0, validator.calls())

	validator.setErr(errors.New("no keys"))
	id := gossip.NewEventID([]byte("doomed"))
	payload, _ := json.Marshal(map[string]string{"id": id.String()})
	resp, err = http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
