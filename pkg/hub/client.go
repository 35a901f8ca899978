package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/keys"
)

// Info is the hub_info document.
type Info struct {
	ChallengeText              string  `json:"challenge_text"`
	ReadURLPrefix              string  `json:"read_url_prefix"`
	LatestAuthVersion          string  `json:"latest_auth_version"`
	MaxFileUploadSizeMegabytes float64 `json:"max_file_upload_size_megabytes"`
}

// Config is a resolved hub connection: where to write, as whom, with which
// token, and where files are read back from.
type Config struct {
	Address                    string  `json:"address"`
	URLPrefix                  string  `json:"url_prefix"`
	Token                      string  `json:"token"`
	MaxFileUploadSizeMegabytes float64 `json:"max_file_upload_size_megabytes,omitempty"`
	Server                     string  `json:"server"`
}

// ReadURL is the public URL of path.
func (c *Config) ReadURL(path string) string {
	return c.URLPrefix + c.Address + "/" + path
}

// MaxUploadBytes converts the declared limit to bytes; 0 means no limit.
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxFileUploadSizeMegabytes <= 0 {
		return 0
	}
	return int64(c.MaxFileUploadSizeMegabytes * 1024 * 1024)
}

// ConnectRequest names the hub and the key to authenticate with.
type ConnectRequest struct {
	HubURL           string
	PrivateKey       string
	AssociationToken string
	Scopes           []Scope
}

// UploadRequest is one store call.
type UploadRequest struct {
	Path          string
	Body          io.Reader
	ContentLength int64
	ContentType   string
	// NewFile sends If-None-Match: * so the hub rejects overwrites.
	NewFile bool
	// Etag sends If-Match for updates.
	Etag       string
	IgnoreEtag bool
}

// WriteResponse is the hub's answer to a store call.
type WriteResponse struct {
	PublicURL string `json:"publicURL"`
	Etag      string `json:"etag,omitempty"`
}

// DeleteRequest is one delete call.
type DeleteRequest struct {
	Path string
	Etag string
}

// ReadResponse is a raw read. Non-2xx statuses are returned, not failed.
type ReadResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ListResponse is one page of list-files.
type ListResponse struct {
	Entries []string `json:"entries"`
	Page    *string  `json:"page"`
}

// Client speaks the hub HTTP protocol.
type Client struct {
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// NewClient returns a client whose HTTP requests time out after timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect fetches hub_info and builds a Config with a fresh auth token.
//
// Parameters:
//   - req.HubURL: hub base URL, without trailing slash.
//   - req.PrivateKey: hex app private key; its address owns the bucket.
//   - req.AssociationToken: optional token delegating write access.
//
// Returns the resolved Config, or a *HubError when hub_info is not 2xx.
func (c *Client) Connect(ctx context.Context, req ConnectRequest) (*Config, error) {
	hubURL := strings.TrimRight(req.HubURL, "/")
	zap.L().Debug("Connecting to hub", zap.String("hub", hubURL))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, hubURL+"/hub_info", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("hub_info: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hub_info: read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("hub_info: %w", NewHubError(resp.StatusCode, body))
	}
	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("hub_info: decode: %w", err)
	}

	tok, err := makeAuthToken(&info, req.PrivateKey, hubURL, req.AssociationToken, req.Scopes)
	if err != nil {
		return nil, fmt.Errorf("hub auth token: %w", err)
	}
	address, err := keys.PrivateKeyToAddress(req.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Config{
		Address:                    address,
		URLPrefix:                  info.ReadURLPrefix,
		Token:                      tok,
		MaxFileUploadSizeMegabytes: info.MaxFileUploadSizeMegabytes,
		Server:                     hubURL,
	}, nil
}

func (c *Client) authorize(r *http.Request, cfg *Config) {
	r.Header.Set("Authorization", "bearer "+cfg.Token)
}

// Upload stores req.Body at req.Path.
func (c *Client) Upload(ctx context.Context, cfg *Config, req UploadRequest) (*WriteResponse, error) {
	url := cfg.Server + "/store/" + cfg.Address + "/" + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, req.Body)
	if err != nil {
		return nil, err
	}
	if req.ContentLength > 0 {
		httpReq.ContentLength = req.ContentLength
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	c.authorize(httpReq, cfg)
	if !req.IgnoreEtag {
		if req.NewFile {
			httpReq.Header.Set("If-None-Match", "*")
		} else if req.Etag != "" {
			httpReq.Header.Set("If-Match", req.Etag)
		}
	}

	zap.L().Debug("Uploading to hub",
		zap.String("path", req.Path),
		zap.Int64("bytes", req.ContentLength),
		zap.Bool("newFile", req.NewFile))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", req.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("store %q: read body: %w", req.Path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &RemoteWriteError{Path: req.Path, Hub: NewHubError(resp.StatusCode, body)}
	}
	var out WriteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("store %q: decode: %w", req.Path, err)
	}
	return &out, nil
}

// Read fetches url.
func (c *Client) Read(ctx context.Context, url string) (*ReadResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return &ReadResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Delete removes req.Path, guarded by If-Match when req.Etag is set.
func (c *Client) Delete(ctx context.Context, cfg *Config, req DeleteRequest) error {
	url := cfg.Server + "/delete/" + cfg.Address + "/" + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.authorize(httpReq, cfg)
	if req.Etag != "" {
		httpReq.Header.Set("If-Match", req.Etag)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete %q: %w", req.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return &RemoteWriteError{Path: req.Path, Hub: NewHubError(resp.StatusCode, body)}
	}
	return nil
}

// List returns one page of the bucket's file names. page is nil for the
// first page.
func (c *Client) List(ctx context.Context, cfg *Config, page *string) (*ListResponse, error) {
	url := cfg.Server + "/list-files/" + cfg.Address
	payload, err := json.Marshal(struct {
		Page *string `json:"page"`
		Stat bool    `json:"stat"`
	}{Page: page})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq, cfg)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list-files: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list-files: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &RemoteReadError{URL: url, Hub: NewHubError(resp.StatusCode, body)}
	}
	var out ListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("list-files: decode: %w", err)
	}
	return &out, nil
}
