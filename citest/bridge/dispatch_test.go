package bridge_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/transport/wsbridge"
)

// testWindow bundles one simulated window process: registry, bridge
// client, router, and a recorder of every delivery it observes.
type testWindow struct {
	id     string
	client *wsbridge.Client
	router *action.Router

	mu   sync.Mutex
	seen map[string][]any
}

func (w *testWindow) observe(name string, payload any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[name] = append(w.seen[name], payload)
}

func (w *testWindow) count(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen[name])
}

func (w *testWindow) deliveries(name string) []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]any, len(w.seen[name]))
	copy(out, w.seen[name])
	return out
}

func (w *testWindow) close() {
	if w.router != nil {
		w.router.Close()
	}
	if w.client != nil {
		w.client.Close()
	}
}

var _ = Describe("Cross-window dispatch", func() {
	var (
		hub       *wsbridge.Hub
		hubServer *httptest.Server
		hubURL    string

		mainWin  *testWindow
		composer *testWindow
		drafts   *testWindow
	)

	joinWindow := func(id string, main bool) *testWindow {
		w := &testWindow{id: id, seen: make(map[string][]any)}

		reg := action.NewRegistry()
		for _, entry := range []struct {
			name  string
			scope action.Scope
		}{
			{"logNote", action.ScopeWindow},
			{"queueJob", action.ScopeMainWindow},
			{"pingPeer", action.ScopeGlobal},
		} {
			ch := reg.MustRegister(entry.name, entry.scope)
			name := entry.name
			ch.Subscribe(func(payload any) { w.observe(name, payload) })
		}

		client, err := wsbridge.Dial(ctx, hubURL, id, main)
		Expect(err).NotTo(HaveOccurred(), "window %s should join the hub", id)
		w.client = client
		w.router = action.NewRouter(reg, id, main, action.WithTransport(client))
		return w
	}

	BeforeEach(func() {
		hub = wsbridge.NewHub()
		hubServer = httptest.NewServer(hub.Handler())
		hubURL = strings.Replace(hubServer.URL, "http://", "ws://", 1)

		mainWin = joinWindow("main", true)
		composer = joinWindow("composer", false)
		drafts = joinWindow("drafts", false)
	})

	AfterEach(func() {
		for _, w := range []*testWindow{mainWin, composer, drafts} {
			if w != nil {
				w.close()
			}
		}
		if hubServer != nil {
			hubServer.Close()
		}
		if hub != nil {
			hub.Close()
		}
	})

	Describe("global actions", func() {
		It("should fan out to every window including the firer", func() {
			err := mainWin.router.Fire("pingPeer", map[string]any{"from": "main"})
			Expect(err).NotTo(HaveOccurred())

			Expect(mainWin.count("pingPeer")).To(Equal(1), "local delivery is synchronous")

			Eventually(func() int { return composer.count("pingPeer") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))
			Eventually(func() int { return drafts.count("pingPeer") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))

			payloads := composer.deliveries("pingPeer")
			Expect(payloads).To(HaveLen(1))
			Expect(payloads[0]).To(HaveKeyWithValue("from", "main"))
		})

		It("should not redeliver to the origin window", func() {
			err := drafts.router.Fire("pingPeer", map[string]any{"from": "drafts"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int { return mainWin.count("pingPeer") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))
			Eventually(func() int { return composer.count("pingPeer") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))

			Consistently(func() int { return drafts.count("pingPeer") }, 300*time.Millisecond, 50*time.Millisecond).Should(Equal(1), "the origin must not see its own envelope again")
		})

		It("should decode payloads as JSON on the receiving side", func() {
			type pingPayload struct {
				Seq int `json:"seq"`
			}
			original := &pingPayload{Seq: 3}
			Expect(mainWin.router.Fire("pingPeer", original)).To(Succeed())

			locals := mainWin.deliveries("pingPeer")
			Expect(locals).To(HaveLen(1))
			Expect(locals[0]).To(BeIdenticalTo(original), "local subscribers get the payload by reference")

			Eventually(func() int { return composer.count("pingPeer") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))
			remote := composer.deliveries("pingPeer")[0]
			Expect(remote).To(HaveKeyWithValue("seq", float64(3)), "remote payloads arrive as decoded JSON")
		})
	})

	Describe("main-window actions", func() {
		It("should land only on the main window when fired from a child", func() {
			err := composer.router.Fire("queueJob", map[string]any{"job": "send-later"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int { return mainWin.count("queueJob") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))

			Consistently(func() int { return composer.count("queueJob") }, 300*time.Millisecond, 50*time.Millisecond).Should(BeZero(), "the firing child must not run main-window work")
			Expect(drafts.count("queueJob")).To(BeZero())
		})

		It("should execute locally without forwarding when fired from main", func() {
			err := mainWin.router.Fire("queueJob", map[string]any{"job": "sync-mail"})
			Expect(err).NotTo(HaveOccurred())

			Expect(mainWin.count("queueJob")).To(Equal(1))

			Consistently(func() int {
				return composer.count("queueJob") + drafts.count("queueJob")
			}, 300*time.Millisecond, 50*time.Millisecond).Should(BeZero())
		})
	})

	Describe("window actions", func() {
		It("should never cross the bridge", func() {
			err := composer.router.Fire("logNote", map[string]any{"text": "private"})
			Expect(err).NotTo(HaveOccurred())

			Expect(composer.count("logNote")).To(Equal(1))

			Consistently(func() int {
				return mainWin.count("logNote") + drafts.count("logNote")
			}, 300*time.Millisecond, 50*time.Millisecond).Should(BeZero())
		})
	})

	Describe("hub occupancy", func() {
		It("should reject a second main window", func() {
			_, err := wsbridge.Dial(ctx, hubURL, "impostor", true)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a duplicate window ID", func() {
			_, err := wsbridge.Dial(ctx, hubURL, "composer", false)
			Expect(err).To(HaveOccurred())
		})

		It("should list connected windows over HTTP", func() {
			resp, err := http.Get(hubServer.URL + "/windows")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Windows []struct {
					ID   string `json:"id"`
					Main bool   `json:"main"`
				} `json:"windows"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Windows).To(HaveLen(3))

			mains := 0
			for _, w := range body.Windows {
				if w.Main {
					mains++
					Expect(w.ID).To(Equal("main"))
				}
			}
			Expect(mains).To(Equal(1))
		})
	})

	Describe("fire-and-forget delivery", func() {
		It("should keep local effects when a remote window is gone", func() {
			drafts.close()
			drafts = nil

			err := mainWin.router.Fire("pingPeer", map[string]any{"from": "main"})
			Expect(err).NotTo(HaveOccurred(), "a missing peer never fails the firer")
			Expect(mainWin.count("pingPeer")).To(Equal(1))

			Eventually(func() int { return composer.count("pingPeer") }, 2*time.Second, 20*time.Millisecond).Should(Equal(1))
		})
	})
})
