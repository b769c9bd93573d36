package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var (
	actionsAddr    string
	actionsScope   string
	actionsPattern string
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions a window exposes",
	Long: `Fetch and print the action table from a window's diagnostics API.

The window must be running with a debug address (see 'actionbridge
window --debug-addr').

Examples:
  actionbridge actions --addr 127.0.0.1:8711
  actionbridge actions --addr 127.0.0.1:8711 --scope global
  actionbridge actions --addr 127.0.0.1:8711 --pattern 'ping*'`,
	RunE: runActions,
}

func init() {
	actionsCmd.Flags().StringVar(&actionsAddr, "addr", "", "Window diagnostics address (host:port)")
	actionsCmd.Flags().StringVar(&actionsScope, "scope", "", "Filter by scope (window|main|global)")
	actionsCmd.Flags().StringVar(&actionsPattern, "pattern", "", "Filter by name pattern")
}

func runActions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := actionsAddr
	if addr == "" {
		addr = cfg.Debug.Addr
	}
	if addr == "" {
		return fmt.Errorf("no diagnostics address: pass --addr or set debug.addr in config")
	}

	u := url.URL{Scheme: "http", Host: addr, Path: "/actions"}
	q := u.Query()
	if actionsScope != "" {
		q.Set("scope", actionsScope)
	}
	if actionsPattern != "" {
		q.Set("pattern", actionsPattern)
	}
	u.RawQuery = q.Encode()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(u.String())
	if err != nil {
		return fmt.Errorf("fetch actions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("window rejected request: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("window returned %s", resp.Status)
	}

	var result struct {
		WindowID string `json:"windowId"`
		Actions  []struct {
			Name  string `json:"name"`
			Scope string `json:"scope"`
		} `json:"actions"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode actions: %w", err)
	}

	fmt.Printf("Window %s exposes %d action(s):\n\n", result.WindowID, result.Count)
	fmt.Printf("  %-24s %s\n", "NAME", "SCOPE")
	for _, a := range result.Actions {
		fmt.Printf("  %-24s %s\n", a.Name, a.Scope)
	}
	return nil
}
