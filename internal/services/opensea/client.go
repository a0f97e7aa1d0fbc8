package opensea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrTokenNotFound reports a token id the collection does not contain.
var ErrTokenNotFound = errors.New("opensea: token not found")

// TraitValue is a marketplace trait value. Collections mix value types freely,
// so strings, numbers, booleans, and null all normalize to a string.
type TraitValue string

func (v *TraitValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TraitValue(s)
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode trait value %s: %w", strings.TrimSpace(string(data)), err)
	}
	switch value := raw.(type) {
	case nil:
		*v = ""
	case bool:
		*v = TraitValue(strconv.FormatBool(value))
	case float64:
		*v = TraitValue(strconv.FormatFloat(value, 'f', -1, 64))
	default:
		*v = TraitValue(fmt.Sprint(value))
	}
	return nil
}

func (v TraitValue) String() string { return string(v) }

// Trait is a single attribute attached to an NFT.
type Trait struct {
	TraitType string     `json:"trait_type"`
	Value     TraitValue `json:"value"`
}

// NFT models the subset of the OpenSea NFT payload the card pipeline needs.
type NFT struct {
	Identifier  string  `json:"identifier"`
	Collection  string  `json:"collection"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	Traits      []Trait `json:"traits"`
}

type nftResponse struct {
	NFT NFT `json:"nft"`
}

// Lookuper defines the trait lookup operation used by the card pipeline.
type Lookuper interface {
	GetNFT(ctx context.Context, tokenID string) (*NFT, error)
}

// Client provides read-only access to the OpenSea API for one collection.
type Client struct {
	apiKey     string
	baseURL    string
	chain      string
	contract   string
	httpClient *http.Client
}

var _ Lookuper = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an OpenSea client scoped to a single chain and contract.
func New(apiKey, baseURL, chain, contract string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("opensea api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("opensea base url required")
	}
	contract = strings.TrimSpace(contract)
	if contract == "" {
		return nil, errors.New("opensea contract address required")
	}
	chain = strings.TrimSpace(chain)
	if chain == "" {
		chain = "ethereum"
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chain:      chain,
		contract:   contract,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// GetNFT fetches metadata and traits for a single token id.
func (c *Client) GetNFT(ctx context.Context, tokenID string) (*NFT, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, errors.New("token id must not be empty")
	}
	endpoint, err := url.Parse(fmt.Sprintf("%s/chain/%s/contract/%s/nfts/%s",
		c.baseURL, url.PathEscape(c.chain), url.PathEscape(c.contract), url.PathEscape(tokenID)))
	if err != nil {
		return nil, fmt.Errorf("parse opensea url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: token %s in collection %s", ErrTokenNotFound, tokenID, c.contract)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensea lookup returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload nftResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode opensea response: %w", err)
	}
	if payload.NFT.Identifier == "" {
		payload.NFT.Identifier = tokenID
	}
	return &payload.NFT, nil
}
