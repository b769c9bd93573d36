package wsbridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

const (
	// dialInitialInterval is the initial interval for dial backoff.
	dialInitialInterval = 250 * time.Millisecond
	// dialMaxInterval is the maximum interval between dial attempts.
	dialMaxInterval = 5 * time.Second
	// dialMaxElapsedTime is the maximum total time spent dialing.
	dialMaxElapsedTime = 30 * time.Second
)

// newDialBackoff creates an exponential backoff with jitter for hub
// dialing, context-aware so a cancelled window stops retrying.
func newDialBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = dialInitialInterval
	b.MaxInterval = dialMaxInterval
	b.MaxElapsedTime = dialMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Client is a window's connection to the relay hub. It implements
// action.Transport; a Router built with WithTransport(client) routes
// cross-window fires over the socket.
type Client struct {
	url      string
	windowID string
	main     bool

	mu      sync.Mutex
	ws      *websocket.Conn
	handler func(env action.Envelope)

	done   chan struct{}
	closed atomic.Bool
	log    zerolog.Logger
}

// Dial connects a window to the hub, retrying with exponential backoff
// while the hub is not reachable yet. A rejection (duplicate window ID,
// second main) is permanent and fails immediately.
func Dial(ctx context.Context, hubURL, windowID string, main bool) (*Client, error) {
	if windowID == "" {
		return nil, fmt.Errorf("window ID must not be empty")
	}
	wsURL, err := ipcURL(hubURL, windowID, main)
	if err != nil {
		return nil, err
	}

	c := &Client{
		url:      wsURL,
		windowID: windowID,
		main:     main,
		done:     make(chan struct{}),
		log:      logging.Component("wsbridge").With().Str("window", windowID).Logger(),
	}

	ws, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.ws = ws
	c.log.Info().Bool("main", main).Msg("connected to hub")

	go c.readLoop(ws)
	return c, nil
}

// ipcURL derives the /ipc WebSocket URL from the hub's base URL.
func ipcURL(hubURL, windowID string, main bool) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("parsing hub URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ipc"

	q := u.Query()
	q.Set("window", windowID)
	q.Set("main", strconv.FormatBool(main))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	bo := newDialBackoff(ctx)
	for {
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			return ws, nil
		}
		if resp != nil {
			status := resp.StatusCode
			resp.Body.Close()
			if status == http.StatusConflict {
				return nil, fmt.Errorf("hub rejected window %q: %w", c.windowID, err)
			}
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			return nil, fmt.Errorf("dialing hub: %w", err)
		}
		c.log.Debug().Err(err).Dur("retryIn", next).Msg("hub not reachable, retrying")
		select {
		case <-time.After(next):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, fmt.Errorf("client closed")
		}
	}
}

// WindowID returns the window identity this client dialed with.
func (c *Client) WindowID() string {
	return c.windowID
}

// Main reports whether this client joined as the main window.
func (c *Client) Main() bool {
	return c.main
}

// Connected reports whether the socket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// SendToMain relays the envelope to the main window.
func (c *Client) SendToMain(env action.Envelope) error {
	return c.writeFrame(frame{Kind: kindMain, Envelope: env})
}

// BroadcastToOthers relays the envelope to every other window.
func (c *Client) BroadcastToOthers(env action.Envelope) error {
	return c.writeFrame(frame{Kind: kindBroadcast, Envelope: env})
}

// OnEnvelopeReceived installs the inbound handler. nil detaches it.
func (c *Client) OnEnvelopeReceived(handler func(env action.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *Client) writeFrame(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return fmt.Errorf("not connected to hub")
	}
	return c.ws.WriteJSON(f)
}

// readLoop delivers inbound envelopes to the handler, one at a time on
// this goroutine: the window's event loop. On connection loss it redials
// before giving up.
func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		var env action.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.setConn(nil)
			if c.closed.Load() {
				return
			}
			c.log.Warn().Err(err).Msg("hub connection lost, redialing")
			ws = c.redial()
			if ws == nil {
				return
			}
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()

		if handler != nil {
			handler(env)
		}
	}
}

// redial re-establishes the hub connection after a loss. Returns nil
// when the client was closed or the backoff gave up.
func (c *Client) redial() *websocket.Conn {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	ws, err := c.dial(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("could not re-establish hub connection")
		return nil
	}
	c.setConn(ws)
	c.log.Info().Msg("reconnected to hub")
	return ws
}

func (c *Client) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = ws
}

// Close stops the read loop and closes the socket. Idempotent.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)

	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.handler = nil
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}
