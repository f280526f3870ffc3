package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the external asset service over HTTP. It implements
// both Resolver and Inventory.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// ClientOptions configures the asset service client.
type ClientOptions struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewClient creates an asset service client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		http:     &http.Client{Timeout: opts.Timeout},
	}
}

type resolveRequest struct {
	Host    string `json:"host"`
	Purpose string `json:"purpose"`
}

type resolveResponse struct {
	Found          bool                   `json:"found"`
	Profile        *ConnectionProfile     `json:"profile,omitempty"`
	HasCredentials bool                   `json:"has_credentials"`
	Params         map[string]interface{} `json:"params,omitempty"`
	SecretKeys     []string               `json:"secret_keys,omitempty"`
	Missing        []MissingParam         `json:"missing,omitempty"`
	Hint           string                 `json:"hint,omitempty"`
}

// Resolve looks up the connection profile and credentials for a host.
// A host without an inventory record is not an error; a host with a
// record but no stored credentials yields MissingCredentialsError.
func (c *Client) Resolve(ctx context.Context, host, purpose string) (*Resolution, error) {
	var resp resolveResponse
	status, err := c.post(ctx, "/api/v1/resolve", resolveRequest{Host: host, Purpose: purpose}, &resp)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound || !resp.Found {
		log.Debug().Str("host", host).Msg("Host has no inventory record")
		return &Resolution{Found: false}, nil
	}

	if !resp.HasCredentials {
		return nil, &MissingCredentialsError{
			Host:    host,
			Purpose: purpose,
			Missing: resp.Missing,
			Hint:    resp.Hint,
		}
	}

	res := &Resolution{
		Found:      true,
		Profile:    resp.Profile,
		Params:     resp.Params,
		SecretKeys: resp.SecretKeys,
	}
	if res.Params == nil {
		res.Params = map[string]interface{}{}
	}
	if resp.Profile != nil {
		if resp.Profile.Port != 0 {
			res.Params["port"] = resp.Profile.Port
		}
		res.Params["use_ssl"] = resp.Profile.UseSSL
		if resp.Profile.Domain != "" {
			res.Params["domain"] = resp.Profile.Domain
		}
	}

	return res, nil
}

// Count returns the number of inventory assets matching the filter.
func (c *Client) Count(ctx context.Context, filter InventoryFilter) (int, error) {
	q := url.Values{}
	if filter.Platform != "" {
		q.Set("platform", filter.Platform)
	}
	if filter.Site != "" {
		q.Set("site", filter.Site)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/api/v1/assets/count", q, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Search returns inventory assets matching a free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Asset, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Assets []Asset `json:"assets"`
	}
	if err := c.get(ctx, "/api/v1/assets/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encoding asset request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("asset service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("asset service returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding asset response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.endpoint + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("asset service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("asset service returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
