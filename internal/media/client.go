package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client publishes rule sets to the media router over its JSON REST
// interface.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the router at baseURL. Request
// deadlines come from the caller's context.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
	}
}

// PublishRules implements Publisher.
func (c *Client) PublishRules(ctx context.Context, identity string, rules RuleSet) error {
	body, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/streams/%s/rules", c.base, url.PathEscape(identity))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("publish rules for %s: %w", identity, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publish rules for %s: unexpected status %d", identity, resp.StatusCode)
	}
	return nil
}
