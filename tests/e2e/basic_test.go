package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/api"
	"github.com/driftwire-io/driftwire/event"
	"github.com/driftwire-io/driftwire/gw"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestBotRoundTrip walks the whole client: connect, identify, receive a
// message event through the dispatcher, then answer it over REST.
func TestBotRoundTrip(t *testing.T) {
	t.Parallel()

	tg := startTestGateway(t, 60_000)

	// REST side: record what the bot posts back.
	posted := make(chan string, 1)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body struct {
				Content string `json:"content"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			posted <- body.Content
		}
		w.Write([]byte(`{"id":"99"}`))
	}))
	defer apiSrv.Close()

	restClient := api.New(api.NewConfig(apiSrv.URL, "tok"), quietLogger())

	received := make(chan event.Message, 1)
	d := gw.NewDispatcher(quietLogger())
	d.OnMessageCreate(func(m event.Message) {
		received <- m
	})

	client := gw.New(gw.NewConfig(tg.wsURL(), "tok", uint64(driftwire.IntentsDefault)), d, quietLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		client.Close(ctx)
	}()

	s := tg.awaitSession(t)

	waitFor(t, func() bool { return client.State() == driftwire.StateReady })

	s.dispatch(t, "MESSAGE_CREATE", 10,
		`{"id":"5","channel_id":"42","content":"!ping","author":{"id":"1","username":"ada"}}`)

	var msg event.Message
	select {
	case msg = <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("message event never reached the handler")
	}
	if msg.Content != "!ping" || msg.ChannelID != "42" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// Respond the way a bot would.
	_, err := restClient.Request(context.Background(), api.CreateMessage(msg.ChannelID),
		map[string]string{"content": "pong"})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	select {
	case content := <-posted:
		if content != "pong" {
			t.Errorf("posted content = %q, want %q", content, "pong")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("REST call never reached the API server")
	}
}

// TestResumeRoundTrip verifies a dropped socket resumes the session and
// events keep flowing afterwards.
func TestResumeRoundTrip(t *testing.T) {
	t.Parallel()

	tg := startTestGateway(t, 60_000)

	received := make(chan event.Message, 4)
	d := gw.NewDispatcher(quietLogger())
	d.OnMessageCreate(func(m event.Message) { received <- m })

	client := gw.New(gw.NewConfig(tg.wsURL(), "tok", 0), d, quietLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		client.Close(ctx)
	}()

	s := tg.awaitSession(t)
	waitFor(t, func() bool { return client.State() == driftwire.StateReady })

	// Kill the socket; the scripted endpoint answers the RESUME.
	s.ws.Close()
	s2 := tg.awaitSession(t)
	waitFor(t, func() bool { return client.State() == driftwire.StateReady })

	s2.dispatch(t, "MESSAGE_CREATE", 20, `{"id":"6","channel_id":"42","content":"after resume"}`)
	select {
	case msg := <-received:
		if msg.Content != "after resume" {
			t.Errorf("content = %q, want %q", msg.Content, "after resume")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event after resume")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}
