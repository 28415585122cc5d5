package cdp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BrowserInfo holds information about the connected Chrome instance.
type BrowserInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// discoveredTarget is one row of Chrome's /json endpoint response.
type discoveredTarget struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	BrowserContextID string `json:"browserContextId"`
}

// TargetSummary is a discovered tab/target, trimmed to the fields the
// adapter needs to seed its initial state.
type TargetSummary struct {
	TargetID         string
	Type             string
	Title            string
	URL              string
	BrowserContextID string
}

// DiscoverBrowserInfo queries the /json/version endpoint.
func DiscoverBrowserInfo(port string) (*BrowserInfo, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/json/version", port))
	if err != nil {
		return nil, fmt.Errorf("connect to chrome on port %s: %w", port, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var info BrowserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode browser info: %w", err)
	}
	return &info, nil
}

// DiscoverTabs queries the /json endpoint for all open page targets.
func DiscoverTabs(port string) ([]TargetSummary, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/json", port))
	if err != nil {
		return nil, fmt.Errorf("connect to chrome on port %s: %w", port, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var targets []discoveredTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}

	var out []TargetSummary
	for _, t := range targets {
		if t.Type != targetTypePage {
			continue
		}
		out = append(out, TargetSummary{
			TargetID:         t.ID,
			Type:             t.Type,
			Title:            t.Title,
			URL:              t.URL,
			BrowserContextID: t.BrowserContextID,
		})
	}
	return out, nil
}

// WaitForChrome blocks until Chrome's debugging endpoint responds, or
// timeout elapses.
func WaitForChrome(port string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(fmt.Sprintf("http://localhost:%s/json/version", port))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("chrome not available on port %s after %v", port, timeout)
}
