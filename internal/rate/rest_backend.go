package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxRESTResponseBytes = 64 << 10

// RESTBackend talks to a key-value service exposing
//
//	POST {endpoint}/incr/{key}
//	POST {endpoint}/expire/{key}/{seconds}
//
// with bearer authentication. Responses are JSON objects carrying either
// "result" or "error".
type RESTBackend struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewRESTBackend returns a backend for endpoint. A nil client uses
// http.DefaultClient; per-call deadlines come from the context.
func NewRESTBackend(endpoint, token string, client *http.Client) *RESTBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   client,
	}
}

type restReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Incr implements Backend.
func (b *RESTBackend) Incr(ctx context.Context, key string) (int64, error) {
	raw, err := b.call(ctx, "/incr/"+url.PathEscape(key))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("incr: unexpected result %s", raw)
	}
	return n, nil
}

// Expire implements Backend.
func (b *RESTBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	_, err := b.call(ctx, "/expire/"+url.PathEscape(key)+"/"+strconv.FormatInt(seconds, 10))
	return err
}

func (b *RESTBackend) call(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Cache-Control", "no-store")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTResponseBytes))
	if err != nil {
		return nil, err
	}

	var reply restReply
	if len(body) > 0 {
		if err := json.Unmarshal(body, &reply); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		if reply.Error != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, reply.Error)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply.Result, nil
}
