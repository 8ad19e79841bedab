package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/portaoweb/portao-core/internal/gate"
)

const (
	requestTimeout = 10 * time.Second

	// statusEvent is the WebSocket event carrying the gate status.
	statusEvent = "statusPortao"
)

// apiClient is a thin HTTP/WebSocket client for the bridge API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// apiError mirrors the server's JSON error body.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, auth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeError turns a non-2xx response into an error, using the JSON
// error body when there is one.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
		return &apiErr
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

// Command relays cmd through the bridge.
func (c *apiClient) Command(ctx context.Context, cmd string) (gate.Result, error) {
	resp, err := c.do(ctx, http.MethodPost, "/comando/"+url.PathEscape(cmd), nil, true)
	if err != nil {
		return gate.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gate.Result{}, decodeError(resp)
	}
	var result gate.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return gate.Result{}, fmt.Errorf("decoding result: %w", err)
	}
	return result, nil
}

// Status returns the bridge's current gate status.
func (c *apiClient) Status(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/statusPortao", nil, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding status: %w", err)
	}
	return body.Status, nil
}

// Report posts status as if the controller had sent it and returns the
// bridge's confirmation text.
func (c *apiClient) Report(ctx context.Context, status string) (string, error) {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/statusPortao", strings.NewReader(string(payload)), false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // informational
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("report rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return strings.TrimSpace(string(text)), nil
}

// wsURL maps the HTTP base URL onto the WebSocket endpoint.
func (c *apiClient) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// wsEvent is the subset of the push message portaoctl reads.
type wsEvent struct {
	Type      string          `json:"type"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// Watch calls fn for every status push until ctx is cancelled or the
// server closes the connection. fn returning false stops the watch.
func (c *apiClient) Watch(ctx context.Context, path string, fn func(status string) bool) error {
	target, err := c.wsURL(path)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading push: %w", err)
		}
		if ev.Type != "event" || ev.EventType != statusEvent {
			continue
		}
		var status string
		if err := json.Unmarshal(ev.Payload, &status); err != nil {
			return errors.Join(errors.New("malformed status event"), err)
		}
		if !fn(status) {
			return nil
		}
	}
}
