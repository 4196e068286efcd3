package stress_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/api"
	"github.com/driftwire-io/driftwire/event"
	"github.com/driftwire-io/driftwire/gw"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startFloodGateway serves one scripted gateway session: HELLO on connect,
// READY on IDENTIFY, ACK on heartbeat. Frames are raw JSON envelopes.
func startFloodGateway(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var writeMu sync.Mutex
		write := func(frame string) {
			writeMu.Lock()
			defer writeMu.Unlock()
			ws.WriteMessage(websocket.TextMessage, []byte(frame))
		}

		write(`{"op":10,"d":{"heartbeat_interval":60000},"s":null,"t":null}`)

		go func() {
			for {
				_, data, err := ws.ReadMessage()
				if err != nil {
					return
				}
				var env struct {
					Op int `json:"op"`
				}
				if json.Unmarshal(data, &env) != nil {
					continue
				}
				switch env.Op {
				case 1:
					write(`{"op":11,"d":null,"s":null,"t":null}`)
				case 2:
					write(`{"op":0,"d":{"v":10,"session_id":"stress"},"s":1,"t":"READY"}`)
					conns <- ws
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

// TestStressDispatchFlood pushes 5000 dispatches through one connection and
// expects every one to reach the handler in order.
func TestStressDispatchFlood(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	srv, conns := startFloodGateway(t)

	const numEvents = 5000

	var received atomic.Int64
	var orderViolations atomic.Int64
	var lastID int64
	done := make(chan struct{})

	d := gw.NewDispatcher(quietLogger())
	d.OnMessageCreate(func(m event.Message) {
		var id int64
		fmt.Sscanf(m.ID, "%d", &id)
		if id <= lastID {
			orderViolations.Add(1)
		}
		lastID = id
		if received.Add(1) == numEvents {
			close(done)
		}
	})

	cfg := gw.NewConfig("ws"+strings.TrimPrefix(srv.URL, "http"), "tok", 0)
	cfg.DispatchBuffer = numEvents
	client := gw.New(cfg, d, quietLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}()

	var ws *websocket.Conn
	select {
	case ws = <-conns:
	case <-time.After(5 * time.Second):
		t.Fatal("client never identified")
	}

	var writeMu sync.Mutex
	for i := 1; i <= numEvents; i++ {
		frame := fmt.Sprintf(
			`{"op":0,"d":{"id":"%d","channel_id":"1","content":"x"},"s":%d,"t":"MESSAGE_CREATE"}`,
			i, i+1)
		writeMu.Lock()
		err := ws.WriteMessage(websocket.TextMessage, []byte(frame))
		writeMu.Unlock()
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatalf("received %d of %d events", received.Load(), numEvents)
	}
	if v := orderViolations.Load(); v != 0 {
		t.Errorf("%d events arrived out of order", v)
	}
	if state := client.State(); state != driftwire.StateReady {
		t.Errorf("state after flood = %v, want ready", state)
	}
}

// TestStressConcurrentRESTCallers hammers one channel route from many
// goroutines and expects the limiter to keep every call successful.
func TestStressConcurrentRESTCallers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	var served atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "10")
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	client := api.New(api.NewConfig(srv.URL, "tok"), quietLogger())

	const callers = 50
	const callsEach = 20

	var wg sync.WaitGroup
	errs := make(chan error, callers*callsEach)

	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			route := api.CreateMessage(fmt.Sprintf("%d", n%8))
			for j := 0; j < callsEach; j++ {
				if _, err := client.Request(context.Background(), route,
					map[string]string{"content": "load"}); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("request failed: %v", err)
	}
	if got := served.Load(); got != callers*callsEach {
		t.Errorf("server handled %d calls, want %d", got, callers*callsEach)
	}
	t.Logf("%d calls in %v", served.Load(), time.Since(start))
}
