package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client is the HTTP client for the remote source manager. The manager is
// the store of record for source registrations; nothing is persisted here.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(baseURL string, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("catalog: manager URL is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("catalog: logger is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

// List returns every registered source. The manager answers either with a
// bare array or with an {items: [...]} wrapper depending on its version.
func (c *Client) List(ctx context.Context) ([]Source, error) {
	body, err := c.do(ctx, http.MethodGet, "/apis", nil)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	var sources []Source
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(body, &sources); err != nil {
			return nil, fmt.Errorf("catalog: decode source list: %w", err)
		}
	} else {
		var wrapper struct {
			Items []Source `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("catalog: decode source list: %w", err)
		}
		sources = wrapper.Items
	}
	for i := range sources {
		sources[i].Normalize()
	}
	return sources, nil
}

func (c *Client) Create(ctx context.Context, source Source) (Source, error) {
	source.Normalize()
	body, err := c.do(ctx, http.MethodPost, "/apis", source)
	if err != nil {
		return Source{}, err
	}
	return decodeSource(body, source)
}

func (c *Client) Update(ctx context.Context, source Source) (Source, error) {
	if source.ID == "" {
		return Source{}, fmt.Errorf("catalog: update needs a source id")
	}
	source.Normalize()
	body, err := c.do(ctx, http.MethodPut, "/apis/"+source.ID, source)
	if err != nil {
		return Source{}, err
	}
	return decodeSource(body, source)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("catalog: delete needs a source id")
	}
	_, err := c.do(ctx, http.MethodDelete, "/apis/"+id, nil)
	return err
}

func decodeSource(body []byte, fallback Source) (Source, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return fallback, nil
	}
	var source Source
	if err := json.Unmarshal(body, &source); err != nil {
		return fallback, nil
	}
	if source.ID == "" {
		source.ID = fallback.ID
	}
	source.Normalize()
	return source, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("catalog: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("catalog: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog: %s %s returned %d", method, path, resp.StatusCode)
	}
	return body, nil
}
