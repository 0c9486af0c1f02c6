package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	alarms "alarmboard/internal/alarms/domain"
)

// Client talks to the local collector daemons that proxy the vendor alarm
// API. One daemon runs per API version, listening on port 5000+version.
type Client struct {
	host       string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(host string, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("collector: host is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("collector: logger is required")
	}
	return &Client{
		host:       strings.TrimSpace(host),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

var versionPathRe = regexp.MustCompile(`(?i)/api/V?(\d+)`)

// VersionFromBaseURL parses the API version out of a source base URL such as
// http://host/api/V3. Unrecognized paths fall back to version 3.
func VersionFromBaseURL(baseURL string) int {
	match := versionPathRe.FindStringSubmatch(baseURL)
	if match == nil {
		return 3
	}
	version, err := strconv.Atoi(match[1])
	if err != nil || version <= 0 {
		return 3
	}
	return version
}

// ResolveCollectorOrigin maps an API version to the daemon origin for it.
func ResolveCollectorOrigin(host string, version int) string {
	if version <= 0 {
		version = 3
	}
	return fmt.Sprintf("http://%s:%d", host, 5000+version)
}

// Session is one source's slice of a batch collect request.
type Session struct {
	BaseURL   string `json:"base_url"`
	Token     string `json:"token"`
	PageSize  int    `json:"pageSize"`
	Page      int    `json:"page"`
	Offset    int    `json:"offset"`
	VerifySSL bool   `json:"verify_ssl"`
}

// APIBreakdown is one source's section of the daemon's per-API split.
type APIBreakdown struct {
	BaseURL string         `json:"base_url"`
	Items   []alarms.Event `json:"items"`
}

// BatchResult is the daemon's answer to a batch collect.
type BatchResult struct {
	Items     []alarms.Event `json:"items"`
	ByAPI     []APIBreakdown `json:"by_api"`
	Succeeded int            `json:"succeeded"`
	Errors    []BatchError   `json:"errors"`
}

type BatchError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type loginRequest struct {
	BaseURL   string `json:"base_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	VerifySSL bool   `json:"verify_ssl"`
}

// Login authenticates against a source through its version daemon and
// returns the extracted token.
func (c *Client) Login(ctx context.Context, baseURL, username, password string) (string, error) {
	origin := ResolveCollectorOrigin(c.host, VersionFromBaseURL(baseURL))
	body, err := c.postJSON(ctx, origin+"/auth/login", loginRequest{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	token, ok := ExtractToken(body)
	if !ok {
		return "", fmt.Errorf("collector: login response for %s carried no token", baseURL)
	}
	return token, nil
}

// CollectBatch fetches alarm pages for a set of authenticated sessions. All
// sessions must target the same collector origin. Each returned item is
// stamped with a receive time and, where the per-API breakdown identifies
// it, with the base URL of the source it came from.
func (c *Client) CollectBatch(ctx context.Context, origin string, sessions []Session) (*BatchResult, error) {
	body, err := c.postJSON(ctx, origin+"/collect/alarms", map[string]any{"apis": sessions})
	if err != nil {
		return nil, err
	}
	var result BatchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("collector: decode batch response: %w", err)
	}
	if result.Succeeded == 0 && len(result.Errors) > 0 {
		return &result, fmt.Errorf("collector: batch failed: %s", result.Errors[0].Message)
	}
	if result.Succeeded == 0 && len(result.Items) > 0 {
		result.Succeeded = 1
	}
	originByID := make(map[string]string)
	for _, section := range result.ByAPI {
		for _, item := range section.Items {
			if item.ID != "" {
				originByID[item.ID] = section.BaseURL
			}
		}
	}
	now := time.Now().UnixMilli()
	for i := range result.Items {
		result.Items[i].ReceivedAtMs = now
		if base, ok := originByID[result.Items[i].ID]; ok {
			result.Items[i].SourceOrigin = base
		}
	}
	return &result, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("collector: bad endpoint %q: %w", endpoint, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("collector: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("collector: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collector: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("collector: read response from %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("collector: %s returned %d: %s", endpoint, resp.StatusCode, snippet)
	}
	return body, nil
}
