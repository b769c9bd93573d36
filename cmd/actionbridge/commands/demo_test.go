package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultScenario_Parses(t *testing.T) {
	sc, err := loadScenario("")
	if err != nil {
		t.Fatalf("Failed to load built-in scenario: %v", err)
	}
	if err := sc.validate(); err != nil {
		t.Fatalf("Built-in scenario invalid: %v", err)
	}

	if sc.Name != "three-scopes" {
		t.Errorf("Expected name three-scopes, got %q", sc.Name)
	}
	if len(sc.Windows) != 3 {
		t.Fatalf("Expected 3 windows, got %d", len(sc.Windows))
	}
	if !sc.Windows[0].Main {
		t.Error("Expected the first window to be main")
	}

	var fires, waits int
	for _, step := range sc.Steps {
		if step.Fire != nil {
			fires++
		}
		if step.Wait != "" {
			waits++
		}
	}
	if fires == 0 || waits == 0 {
		t.Errorf("Expected both fire and wait steps, got %d fires, %d waits", fires, waits)
	}

	// Every catalog action appears somewhere in the script
	used := make(map[string]bool)
	for _, step := range sc.Steps {
		if step.Fire != nil {
			used[step.Fire.Action] = true
		}
	}
	for _, entry := range demoCatalog {
		if !used[entry.Name] {
			t.Errorf("Catalog action %q never fired by the built-in scenario", entry.Name)
		}
	}
}

func TestLoadScenario_FromFile(t *testing.T) {
	content := `name: custom
windows:
  - id: solo
    main: true
steps:
  - fire: {window: solo, action: logNote, payload: {text: hi}}
`
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	sc, err := loadScenario(path)
	if err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}
	if err := sc.validate(); err != nil {
		t.Fatalf("Scenario invalid: %v", err)
	}

	if sc.Name != "custom" {
		t.Errorf("Expected name custom, got %q", sc.Name)
	}
	if len(sc.Steps) != 1 || sc.Steps[0].Fire == nil {
		t.Fatalf("Expected one fire step, got %+v", sc.Steps)
	}
	if got := sc.Steps[0].Fire.Payload["text"]; got != "hi" {
		t.Errorf("Expected payload text hi, got %v", got)
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	if _, err := loadScenario(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected an error for a missing scenario file")
	}
}

func TestScenario_Validate(t *testing.T) {
	tests := []struct {
		name string
		sc   scenario
	}{
		{
			name: "no windows",
			sc:   scenario{Steps: []scenarioStep{{Wait: "10ms"}}},
		},
		{
			name: "window without id",
			sc:   scenario{Windows: []scenarioWindow{{Main: true}}},
		},
		{
			name: "step with fire and wait",
			sc: scenario{
				Windows: []scenarioWindow{{ID: "a"}},
				Steps:   []scenarioStep{{Fire: &fireStep{Window: "a", Action: "logNote"}, Wait: "10ms"}},
			},
		},
		{
			name: "empty step",
			sc: scenario{
				Windows: []scenarioWindow{{ID: "a"}},
				Steps:   []scenarioStep{{}},
			},
		},
		{
			name: "fire without action",
			sc: scenario{
				Windows: []scenarioWindow{{ID: "a"}},
				Steps:   []scenarioStep{{Fire: &fireStep{Window: "a"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.sc.validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestHubURL(t *testing.T) {
	if got := hubURL("127.0.0.1:8700"); got != "ws://127.0.0.1:8700" {
		t.Errorf("Expected ws scheme added, got %q", got)
	}
	if got := hubURL("wss://hub.internal:8700"); got != "wss://hub.internal:8700" {
		t.Errorf("Expected full URL passed through, got %q", got)
	}
}
