package wsbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return hub, srv.URL
}

func dialWindow(t *testing.T, hubURL, windowID string, main bool) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, hubURL, windowID, main)
	if err != nil {
		t.Fatalf("Dial %q failed: %v", windowID, err)
	}
	t.Cleanup(c.Close)
	return c
}

func collect(c *Client) <-chan action.Envelope {
	ch := make(chan action.Envelope, 16)
	c.OnEnvelopeReceived(func(env action.Envelope) {
		ch <- env
	})
	return ch
}

func waitEnvelope(t *testing.T, ch <-chan action.Envelope) action.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for envelope")
		return action.Envelope{}
	}
}

func expectSilence(t *testing.T, ch <-chan action.Envelope) {
	t.Helper()
	select {
	case env := <-ch:
		t.Fatalf("Expected no delivery, got %q from %q", env.Name, env.OriginWindowID)
	case <-time.After(200 * time.Millisecond):
	}
}

func mustEnvelope(t *testing.T, name string, payload any, origin string) action.Envelope {
	t.Helper()
	env, err := action.NewEnvelope(name, payload, origin)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestHub_RelayToMain(t *testing.T) {
	_, url := startHub(t)

	mainClient := dialWindow(t, url, "main", true)
	childClient := dialWindow(t, url, "window-b", false)

	mainGot := collect(mainClient)

	env := mustEnvelope(t, "queueJob", map[string]any{"job": "sync"}, "window-b")
	if err := childClient.SendToMain(env); err != nil {
		t.Fatalf("SendToMain failed: %v", err)
	}

	received := waitEnvelope(t, mainGot)
	if received.Name != "queueJob" || received.OriginWindowID != "window-b" {
		t.Errorf("Expected queueJob from window-b, got %q from %q", received.Name, received.OriginWindowID)
	}

	payload, err := received.DecodePayload()
	if err != nil {
		t.Fatal(err)
	}
	decoded, ok := payload.(map[string]any)
	if !ok || decoded["job"] != "sync" {
		t.Errorf("Expected decoded payload to cross the wire, got %#v", payload)
	}
}

func TestHub_RelayBroadcast_ExcludesSender(t *testing.T) {
	_, url := startHub(t)

	mainClient := dialWindow(t, url, "main", true)
	bClient := dialWindow(t, url, "window-b", false)
	cClient := dialWindow(t, url, "window-c", false)

	mainGot := collect(mainClient)
	bGot := collect(bClient)
	cGot := collect(cClient)

	env := mustEnvelope(t, "pingPeer", nil, "window-b")
	if err := bClient.BroadcastToOthers(env); err != nil {
		t.Fatalf("BroadcastToOthers failed: %v", err)
	}

	waitEnvelope(t, mainGot)
	waitEnvelope(t, cGot)
	expectSilence(t, bGot)
}

func TestHub_RejectsDuplicateWindow(t *testing.T) {
	_, url := startHub(t)

	dialWindow(t, url, "window-a", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Dial(ctx, url, "window-a", false); err == nil {
		t.Error("Expected duplicate window ID to be rejected")
	}
}

func TestHub_RejectsSecondMain(t *testing.T) {
	_, url := startHub(t)

	dialWindow(t, url, "main", true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Dial(ctx, url, "imposter", true); err == nil {
		t.Error("Expected second main window to be rejected")
	}
}

func TestHub_RequiresWindowID(t *testing.T) {
	_, url := startHub(t)

	resp, err := http.Get(url + "/ipc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without a window ID, got %d", resp.StatusCode)
	}
}

func TestHub_WindowsEndpoint(t *testing.T) {
	hub, url := startHub(t)

	dialWindow(t, url, "main", true)
	dialWindow(t, url, "window-b", false)

	ids, mainID := hub.Windows()
	if len(ids) != 2 || mainID != "main" {
		t.Errorf("Expected two windows with main=main, got ids=%v main=%q", ids, mainID)
	}

	resp, err := http.Get(url + "/windows")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Windows []struct {
			ID   string `json:"id"`
			Main bool   `json:"main"`
		} `json:"windows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if len(body.Windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(body.Windows))
	}
	// Sorted by ID: main before window-b
	if body.Windows[0].ID != "main" || !body.Windows[0].Main {
		t.Errorf("Expected main window first, got %+v", body.Windows[0])
	}
	if body.Windows[1].ID != "window-b" || body.Windows[1].Main {
		t.Errorf("Expected window-b second, got %+v", body.Windows[1])
	}
}

func TestHub_NoMainConnected(t *testing.T) {
	_, url := startHub(t)

	child := dialWindow(t, url, "window-b", false)

	// The relay drops the envelope with a warning; the sender never
	// hears about it
	env := mustEnvelope(t, "queueJob", nil, "window-b")
	if err := child.SendToMain(env); err != nil {
		t.Errorf("Expected fire-and-forget send to succeed, got %v", err)
	}
}

func TestClient_Close(t *testing.T) {
	_, url := startHub(t)

	c := dialWindow(t, url, "window-a", false)
	c.Close()
	c.Close() // second close is a no-op

	if c.Connected() {
		t.Error("Expected client to be disconnected after Close")
	}
	env := mustEnvelope(t, "pingPeer", nil, "window-a")
	if err := c.SendToMain(env); err == nil {
		t.Error("Expected send after Close to fail")
	}
}

func TestClient_DisconnectFreesWindowID(t *testing.T) {
	_, url := startHub(t)

	c := dialWindow(t, url, "window-a", false)
	c.Close()

	// The hub notices the closed socket and frees the ID
	deadline := time.After(2 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		rejoined, err := Dial(ctx, url, "window-a", false)
		cancel()
		if err == nil {
			rejoined.Close()
			return
		}
		select {
		case <-deadline:
			t.Fatalf("Window ID still held after disconnect: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestIPCURL(t *testing.T) {
	got, err := ipcURL("http://127.0.0.1:8700", "window-a", true)
	if err != nil {
		t.Fatal(err)
	}
	want := "ws://127.0.0.1:8700/ipc?main=true&window=window-a"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if _, err := ipcURL("ftp://example.com", "window-a", false); err == nil {
		t.Error("Expected unsupported scheme to be rejected")
	}
}

func TestBridge_RoutersEndToEnd(t *testing.T) {
	_, url := startHub(t)

	mainClient := dialWindow(t, url, "main", true)
	childClient := dialWindow(t, url, "window-b", false)

	newReg := func() *action.Registry {
		reg := action.NewRegistry()
		reg.MustRegister("pingPeer", action.ScopeGlobal)
		reg.MustRegister("queueJob", action.ScopeMainWindow)
		return reg
	}
	regMain, regChild := newReg(), newReg()

	mainRouter := action.NewRouter(regMain, "main", true, action.WithTransport(mainClient))
	defer mainRouter.Close()
	childRouter := action.NewRouter(regChild, "window-b", false, action.WithTransport(childClient))
	defer childRouter.Close()

	jobs := make(chan any, 1)
	if _, err := regMain.Subscribe("queueJob", func(payload any) {
		jobs <- payload
	}); err != nil {
		t.Fatal(err)
	}

	if err := childRouter.Fire("queueJob", map[string]any{"retries": 3}); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-jobs:
		decoded, ok := p.(map[string]any)
		if !ok || decoded["retries"] != float64(3) {
			t.Errorf("Expected JSON-decoded payload in the main window, got %#v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for queueJob to cross the bridge")
	}
}
