package jsonrpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNotFound mirrors store.ErrNotFound across the HTTP boundary.
var ErrNotFound = errors.New("jsonrpc: not found")

// Client is a thin HTTP client for a Server's API, used by cmd/client.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{base: baseURL, http: &http.Client{}}
}

func (c *Client) Lookup(ctx context.Context, key string) (string, error) {
	var resp lookupResponse
	if err := c.do(ctx, http.MethodGet, "/v1/lookup/"+key, nil, &resp); err != nil {
		return "", err
	}
	return resp.Owner, nil
}

func (c *Client) Put(ctx context.Context, key, value string) error {
	body, err := json.Marshal([]byte(value))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/v1/resource/"+key, bytes.NewReader(body), nil)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var resp resourceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/resource/"+key, nil, &resp); err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(resp.Value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/v1/resource/"+key, nil, nil)
}

// Peers reports the node's own ring id, the one entry the jsonrpc API
// currently exposes (internal/jsonrpc/server.go's handlePeers).
func (c *Client) Peers(ctx context.Context) (string, error) {
	var resp peersResponse
	if err := c.do(ctx, http.MethodGet, "/v1/peers", nil, &resp); err != nil {
		return "", err
	}
	return resp.Self.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jsonrpc: %s %s: %s", method, path, string(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
