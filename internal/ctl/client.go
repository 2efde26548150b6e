package ctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// out receives all command output.
var out io.Writer = os.Stdout

// do performs one request against the daemon and returns the status code
// and body. Transport failures are wrapped with the URL.
func do(method, baseURL, path, accept string, body io.Reader) (int, []byte, error) {
	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

func getJSON(baseURL, path string, dst any) error {
	code, b, err := do(http.MethodGet, baseURL, path, "application/json", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(code, b, path)
	}
	return json.Unmarshal(b, dst)
}

// getRaw is used where non-200 bodies still carry data (detailed health).
func getRaw(baseURL, path, accept string) (int, []byte, error) {
	return do(http.MethodGet, baseURL, path, accept, nil)
}

func postJSON(baseURL, path string, body, dst any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	code, b, err := do(http.MethodPost, baseURL, path, "application/json", r)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(code, b, path)
	}
	return json.Unmarshal(b, dst)
}

// statusError prefers the daemon's {"error": "..."} message, then the raw
// body, then the bare status.
func statusError(code int, body []byte, path string) error {
	status := fmt.Sprintf("%d %s", code, http.StatusText(code))

	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("HTTP %s: %s", status, apiErr.Error)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("HTTP %s: %s", status, msg)
	}
	return fmt.Errorf("HTTP %s from %s", status, path)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}
