package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flo-mic/stackdash/internal/auth"
	"github.com/flo-mic/stackdash/internal/config"
)

// apiClient talks to a stackdashd.
type apiClient struct {
	server string
	token  string
	http   *http.Client
}

func newAPIClient(cfg *config.ClientConfig) *apiClient {
	return &apiClient{server: cfg.Server, token: cfg.Token, http: http.DefaultClient}
}

func loadAPIClient() (*apiClient, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg), nil
}

// do sends the request and returns the response only for 200 OK. Any other
// status is turned into an error carrying the server's message.
func (c *apiClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, r)
	if err != nil {
		return nil, err
	}
	auth.SetHeader(req, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}
