package commands

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
	"github.com/Jason-Cooke/nylas-mail/internal/transport/inproc"
)

var demoScenarioPath string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Simulate a multi-window session in one process",
	Long: `Run several simulated windows over the in-process hub and fire a
scripted scenario of actions, then print which windows observed which
actions.

Without --scenario a built-in script runs that exercises all three
scopes: a window-scoped note that stays put, a queued job that lands on
the main window, and peer pings that fan out everywhere.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoScenarioPath, "scenario", "", "YAML scenario file (default: built-in)")
}

// defaultScenario exercises every scope from both main and child windows.
const defaultScenario = `name: three-scopes
windows:
  - id: main
    main: true
  - id: composer
  - id: drafts
steps:
  - fire: {window: composer, action: logNote, payload: {text: stays on composer}}
  - fire: {window: composer, action: queueJob, payload: {job: send-later}}
  - fire: {window: main, action: queueJob, payload: {job: sync-mail}}
  - fire: {window: main, action: pingPeer, payload: {from: main}}
  - fire: {window: drafts, action: pingPeer, payload: {from: drafts}}
  - wait: 300ms
`

type scenario struct {
	Name    string           `yaml:"name"`
	Windows []scenarioWindow `yaml:"windows"`
	Steps   []scenarioStep   `yaml:"steps"`
}

type scenarioWindow struct {
	ID   string `yaml:"id"`
	Main bool   `yaml:"main"`
}

type scenarioStep struct {
	Fire *fireStep `yaml:"fire,omitempty"`
	Wait string    `yaml:"wait,omitempty"`
}

type fireStep struct {
	Window  string         `yaml:"window"`
	Action  string         `yaml:"action"`
	Payload map[string]any `yaml:"payload,omitempty"`
}

func loadScenario(path string) (*scenario, error) {
	data := []byte(defaultScenario)
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

func (sc *scenario) validate() error {
	if len(sc.Windows) == 0 {
		return fmt.Errorf("scenario declares no windows")
	}
	for i, w := range sc.Windows {
		if w.ID == "" {
			return fmt.Errorf("window %d: missing id", i+1)
		}
	}
	for i, step := range sc.Steps {
		switch {
		case step.Fire != nil && step.Wait != "":
			return fmt.Errorf("step %d: fire and wait are mutually exclusive", i+1)
		case step.Fire == nil && step.Wait == "":
			return fmt.Errorf("step %d: must set fire or wait", i+1)
		case step.Fire != nil && (step.Fire.Window == "" || step.Fire.Action == ""):
			return fmt.Errorf("step %d: fire needs window and action", i+1)
		}
	}
	return nil
}

// demoWindow is one simulated window: a registry and router joined to the
// in-process hub, counting what it observes.
type demoWindow struct {
	id     string
	main   bool
	router *action.Router

	mu   sync.Mutex
	seen map[string]int
}

func (w *demoWindow) observe(name string, _ any) {
	w.mu.Lock()
	w.seen[name]++
	w.mu.Unlock()
}

func (w *demoWindow) observed(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen[name]
}

func runDemo(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	sc, err := loadScenario(demoScenarioPath)
	if err != nil {
		return err
	}
	if err := sc.validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	hub := inproc.NewHub()
	defer hub.Close()

	windows := make([]*demoWindow, 0, len(sc.Windows))
	byID := make(map[string]*demoWindow, len(sc.Windows))
	for _, decl := range sc.Windows {
		w := &demoWindow{id: decl.ID, main: decl.Main, seen: make(map[string]int)}

		reg := action.NewRegistry()
		log := logging.Component("demo").With().Str("window", decl.ID).Logger()
		if err := registerCatalog(reg, log, w.observe); err != nil {
			return err
		}

		ep, err := hub.Join(ctx, decl.ID, decl.Main)
		if err != nil {
			return err
		}

		w.router = action.NewRouter(reg, decl.ID, decl.Main, action.WithTransport(ep))
		defer w.router.Close()

		windows = append(windows, w)
		byID[decl.ID] = w
	}

	fires := 0
	for i, step := range sc.Steps {
		switch {
		case step.Fire != nil:
			w, ok := byID[step.Fire.Window]
			if !ok {
				return fmt.Errorf("step %d: unknown window %q", i+1, step.Fire.Window)
			}
			if err := w.router.Fire(step.Fire.Action, step.Fire.Payload); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			fires++
		case step.Wait != "":
			d, err := time.ParseDuration(step.Wait)
			if err != nil {
				return fmt.Errorf("step %d: bad wait %q: %w", i+1, step.Wait, err)
			}
			time.Sleep(d)
		}
	}

	// Let in-flight deliveries drain before reading the counters
	time.Sleep(200 * time.Millisecond)

	printObservations(sc.Name, fires, windows)
	return nil
}

func printObservations(name string, fires int, windows []*demoWindow) {
	fmt.Printf("Scenario %s: %d fire step(s) across %d window(s)\n\n", name, fires, len(windows))
	fmt.Printf("  %-12s %-6s %-12s %-8s %s\n", "WINDOW", "MAIN", "ACTION", "SCOPE", "OBSERVED")
	for _, w := range windows {
		mainCol := ""
		if w.main {
			mainCol = "yes"
		}
		for _, entry := range demoCatalog {
			fmt.Printf("  %-12s %-6s %-12s %-8s %d\n",
				w.id, mainCol, entry.Name, entry.Scope, w.observed(entry.Name))
		}
	}
}
