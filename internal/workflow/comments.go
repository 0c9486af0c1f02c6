package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Comment is one operator note attached to an item reference in the remote
// comment store. The newest comment's status is the reference's persisted
// handling status.
type Comment struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// CommentsClient talks to the comment store daemons. Like the collectors,
// one daemon runs per API version on port 5000+version.
type CommentsClient struct {
	host       string
	httpClient *http.Client
	logger     *log.Logger
}

func NewCommentsClient(host string, logger *log.Logger) (*CommentsClient, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("workflow: comments host is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("workflow: logger is required")
	}
	return &CommentsClient{
		host:       strings.TrimSpace(host),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

func (c *CommentsClient) origin(version int) string {
	if version <= 0 {
		version = 3
	}
	return fmt.Sprintf("http://%s:%d", c.host, 5000+version)
}

// List returns every comment for one item reference, newest first as the
// store serves them.
func (c *CommentsClient) List(ctx context.Context, version int, reference string) ([]Comment, error) {
	endpoint := fmt.Sprintf("%s/comments?reference=%s&pageSize=1000", c.origin(version), url.QueryEscape(reference))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	var comments []Comment
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(body, &comments); err != nil {
			return nil, fmt.Errorf("workflow: decode comment list: %w", err)
		}
		return comments, nil
	}
	var wrapper struct {
		Items []Comment `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("workflow: decode comment list: %w", err)
	}
	return wrapper.Items, nil
}

func (c *CommentsClient) Create(ctx context.Context, version int, comment Comment) (Comment, error) {
	body, err := c.do(ctx, http.MethodPost, c.origin(version)+"/comments", comment)
	if err != nil {
		return Comment{}, err
	}
	return decodeComment(body, comment)
}

func (c *CommentsClient) Update(ctx context.Context, version int, comment Comment) (Comment, error) {
	if comment.ID == "" {
		return Comment{}, fmt.Errorf("workflow: update needs a comment id")
	}
	body, err := c.do(ctx, http.MethodPatch, c.origin(version)+"/comments/"+comment.ID, comment)
	if err != nil {
		return Comment{}, err
	}
	return decodeComment(body, comment)
}

func (c *CommentsClient) Delete(ctx context.Context, version int, id string) error {
	if id == "" {
		return fmt.Errorf("workflow: delete needs a comment id")
	}
	_, err := c.do(ctx, http.MethodDelete, c.origin(version)+"/comments/"+id, nil)
	return err
}

func decodeComment(body []byte, fallback Comment) (Comment, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return fallback, nil
	}
	var comment Comment
	if err := json.Unmarshal(body, &comment); err != nil {
		return fallback, nil
	}
	if comment.ID == "" {
		comment.ID = fallback.ID
	}
	return comment, nil
}

func (c *CommentsClient) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("workflow: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("workflow: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workflow: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("workflow: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workflow: %s %s returned %d", method, endpoint, resp.StatusCode)
	}
	return body, nil
}
