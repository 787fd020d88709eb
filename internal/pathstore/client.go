package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Client publishes rule tables to the pathstore HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RetryableError marks a transport failure or a 429/5xx answer.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return "retryable error: " + e.Message
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value      any     `json:"value"`
	MemoryType string  `json:"memory_type,omitempty"`
	Salience   float64 `json:"salience,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// Node is a stored key and its value, as returned by reads and prefix scans.
type Node struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

// LinkRequest is the body for PUT /links. Leaves link to their tree's meta
// node.
type LinkRequest struct {
	From    string  `json:"from_key"`
	To      string  `json:"to_key"`
	Weight  float64 `json:"weight"`
	Summary string  `json:"summary,omitempty"`
}

// call sends one request and checks the status against ok. Writes report
// transport failures as retryable; reads do not.
func (c *Client) call(ctx context.Context, method, path string, body any, out any, ok ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrapf(err, "marshal %s body", path)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := method + " " + path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if method == http.MethodPut {
			return 0, &RetryableError{Message: op + ": " + err.Error()}
		}
		return 0, errors.Wrap(err, op)
	}
	defer resp.Body.Close()

	for _, code := range ok {
		if resp.StatusCode != code {
			continue
		}
		if out != nil && code == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return code, errors.Wrapf(err, "decode %s", op)
			}
		}
		return code, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return resp.StatusCode, &RetryableError{StatusCode: resp.StatusCode, Message: op + ": " + string(msg)}
	}
	return resp.StatusCode, errors.Newf("%s: status %d: %s", op, resp.StatusCode, string(msg))
}

// PutNode stores or replaces the node at key.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	_, err := c.call(ctx, http.MethodPut, "/kv/"+key, req, nil, http.StatusOK, http.StatusCreated)
	return err
}

// GetNode reads one node. A missing node is (nil, nil).
func (c *Client) GetNode(ctx context.Context, key string) (*Node, error) {
	var node Node
	code, err := c.call(ctx, http.MethodGet, "/kv/"+key, nil, &node, http.StatusOK, http.StatusNotFound)
	if err != nil || code == http.StatusNotFound {
		return nil, err
	}
	return &node, nil
}

// DeleteNode removes key, and everything below it when recursive is set.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	path := "/kv/" + key
	if recursive {
		path += "?children=true"
	}
	_, err := c.call(ctx, http.MethodDelete, path, nil, nil, http.StatusOK, http.StatusNoContent)
	return err
}

// ListChildren scans every node under key, up to limit when limit > 0.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]Node, error) {
	path := "/kv/" + key + "/*"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result struct {
		Nodes []Node `json:"nodes"`
	}
	if _, err := c.call(ctx, http.MethodGet, path, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

// PutLink creates or updates an edge between two nodes.
func (c *Client) PutLink(ctx context.Context, req LinkRequest) error {
	_, err := c.call(ctx, http.MethodPut, "/links", req, nil, http.StatusOK, http.StatusCreated)
	return err
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
