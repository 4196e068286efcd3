package e2e_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftwire-io/driftwire/internal/payload"
)

// testGateway is a scripted gateway endpoint: it sends HELLO on connect,
// acknowledges heartbeats, answers IDENTIFY with READY and RESUME with
// RESUMED, and lets tests push dispatches.
type testGateway struct {
	srv      *httptest.Server
	sessions chan *testSession
}

type testSession struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func startTestGateway(t *testing.T, helloInterval int64) *testGateway {
	t.Helper()

	tg := &testGateway{sessions: make(chan *testSession, 4)}
	upgrader := websocket.Upgrader{}
	var seq atomic.Int64

	tg.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := &testSession{ws: ws}
		tg.sessions <- s

		s.send(t, payload.Envelope{
			Op:   payload.OpHello,
			Data: json.RawMessage(fmt.Sprintf(`{"heartbeat_interval":%d}`, helloInterval)),
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			env, err := payload.Decode(data)
			if err != nil {
				continue
			}
			switch env.Op {
			case payload.OpHeartbeat:
				s.send(t, payload.Envelope{Op: payload.OpHeartbeatACK})
			case payload.OpIdentify:
				s.dispatch(t, "READY", seq.Add(1), `{"v":10,"session_id":"e2e-session"}`)
			case payload.OpResume:
				s.dispatch(t, "RESUMED", seq.Add(1), `{}`)
			}
		}
	}))
	t.Cleanup(tg.srv.Close)
	return tg
}

func (tg *testGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(tg.srv.URL, "http")
}

func (tg *testGateway) awaitSession(t *testing.T) *testSession {
	t.Helper()
	select {
	case s := <-tg.sessions:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("no gateway session in time")
		return nil
	}
}

func (s *testSession) send(t *testing.T, env payload.Envelope) {
	t.Helper()
	data, err := payload.Encode(env)
	if err != nil {
		t.Errorf("encode: %v", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *testSession) dispatch(t *testing.T, name string, seq int64, data string) {
	t.Helper()
	s.send(t, payload.Envelope{
		Op:        payload.OpDispatch,
		Data:      json.RawMessage(data),
		Sequence:  &seq,
		EventName: &name,
	})
}
