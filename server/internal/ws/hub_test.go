package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/pkg/types"
	"github.com/hivewatch/hivewatch/server/internal/api"
	wsHub "github.com/hivewatch/hivewatch/server/internal/ws"
)

const (
	testInterval = 20 * time.Millisecond
	collection   = "ruches"
)

// --- helpers ----------------------------------------------------------------

func newStore(t *testing.T, ids ...string) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	for _, id := range ids {
		putHive(t, st, id)
	}
	return st
}

func putHive(t *testing.T, st *store.Memory, id string) {
	t.Helper()
	rec := types.HiveRecord{ID: id, In: 3, Out: 2, Total: 5, Temperature: 22, Spectrum: []float64{0.4}}
	if err := st.Put(context.Background(), collection, id, rec.Fields()); err != nil {
		t.Fatalf("put %s: %v", id, err)
	}
}

// startHub serves the hub from a test server and runs its broadcast loop.
// Returns the ws:// URL, the hub, and a function that stops the loop.
func startHub(t *testing.T, source wsHub.Snapshotter) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(source, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, raw)
	}
	return m
}

// flakySource fails while broken is set and counts calls.
type flakySource struct {
	inner  wsHub.Snapshotter
	broken atomic.Bool
	calls  atomic.Int64
}

func (f *flakySource) Snapshot(ctx context.Context) (api.SnapshotResponse, error) {
	f.calls.Add(1)
	if f.broken.Load() {
		return api.SnapshotResponse{}, errors.New("store down")
	}
	return f.inner.Snapshot(ctx)
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, api.New(newStore(t, "hive-1"), collection))

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "snapshot" {
		t.Errorf("event: got %q, want snapshot", m.Event)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
	if len(m.Data.Hives) != 1 || m.Data.Hives[0].ID != "hive-1" {
		t.Errorf("hives: got %+v", m.Data.Hives)
	}
}

func TestHub_EmptyStore_EmptyHives(t *testing.T) {
	wsURL, _, _ := startHub(t, api.New(newStore(t), collection))
	conn := dial(t, wsURL)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(raw), `"hives":[]`) {
		t.Errorf("want empty hives array, got %s", raw)
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, api.New(newStore(t), collection))

	for i := 0; i < 3; i++ {
		readMessage(t, dial(t, wsURL))
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, api.New(newStore(t), collection))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore(t)
	wsURL, _, _ := startHub(t, api.New(st, collection))

	conn := dial(t, wsURL)
	readMessage(t, conn) // immediate snapshot of the empty collection

	putHive(t, st, "hive-new")

	m := readMessage(t, conn)
	if len(m.Data.Hives) != 1 {
		t.Fatalf("tick broadcast: got %d hives, want 1", len(m.Data.Hives))
	}
	if m.Data.Hives[0].ID != "hive-new" {
		t.Errorf("id: got %q, want hive-new", m.Data.Hives[0].ID)
	}
}

func TestHub_SnapshotFailureSkipsBroadcast(t *testing.T) {
	src := &flakySource{inner: api.New(newStore(t, "hive-1"), collection)}
	wsURL, hub, _ := startHub(t, src)

	conn := dial(t, wsURL)
	readMessage(t, conn)

	src.broken.Store(true)
	time.Sleep(5 * testInterval)
	if n := hub.Count(); n != 1 {
		t.Errorf("client dropped on snapshot failure: Count = %d", n)
	}

	src.broken.Store(false)
	if m := readMessage(t, conn); len(m.Data.Hives) != 1 {
		t.Errorf("after recovery: got %d hives, want 1", len(m.Data.Hives))
	}
}

func TestHub_IdleTicksDoNotReadStore(t *testing.T) {
	src := &flakySource{inner: api.New(newStore(t), collection)}
	startHub(t, src)

	time.Sleep(5 * testInterval)
	if n := src.calls.Load(); n != 0 {
		t.Errorf("Snapshot called %d times with no clients", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, api.New(newStore(t), collection))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(api.New(newStore(t), collection), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
