package devicegw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/ports"
)

// Client talks to the device-control endpoint directly. It is the fallback
// path when the command queue is disabled or down, so it carries its own
// bounded timeout and a circuit breaker: a dead gateway must fail fast, not
// tie up every stop request for the full timeout.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// commandResponse is the gateway's answer to a remote command.
type commandResponse struct {
	Status string `json:"status"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "device-gateway",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Device gateway circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     log,
	}
}

// SendCommand posts the command to the gateway and reports whether the
// device accepted it.
func (c *Client) SendCommand(ctx context.Context, cmd ports.Command) (bool, json.RawMessage, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return false, nil, fmt.Errorf("marshal command: %w", err)
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, cmd.DeviceID, body)
	})
	if err != nil {
		return false, nil, err
	}

	data := raw.(json.RawMessage)
	var resp commandResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, data, fmt.Errorf("decode gateway response: %w", err)
	}
	return resp.Status == "Accepted", data, nil
}

func (c *Client) post(ctx context.Context, deviceID string, body []byte) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/v1/devices/%s/commands", c.baseURL, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway rejected command: %d: %s", resp.StatusCode, string(data))
	}
	return json.RawMessage(data), nil
}
