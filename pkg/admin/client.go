// Package admin talks to the GovSSO admin service.
package admin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

// AllowedIPAddressesPath is appended to the configured base URL.
const AllowedIPAddressesPath = "/clients/tokenrequestallowedipaddresses"

const maxResponseBytes = 10 << 20

var (
	ErrUnexpectedStatus = errors.New("unexpected admin response status")
	ErrInvalidCA        = errors.New("could not parse certificate authority PEM")
)

// Options configures the admin client.
type Options struct {
	BaseURL string
	// CertificateAuthorityFile is a PEM bundle used instead of the system roots.
	CertificateAuthorityFile string
	// InsecureSkipVerify disables TLS verification (dev only).
	InsecureSkipVerify bool
}

type Client struct {
	log     *zap.SugaredLogger
	baseURL string
	http    *http.Client
}

// NewClient builds a client. TLS handling:
// 1. If a CA file is provided, use it (strict validation).
// 2. Else if InsecureSkipVerify is enabled, skip validation.
// 3. Else rely on system roots.
func NewClient(log *zap.SugaredLogger, opts Options) (*Client, error) {
	httpClient := &http.Client{}
	if opts.CertificateAuthorityFile != "" {
		pem, err := os.ReadFile(opts.CertificateAuthorityFile)
		if err != nil {
			return nil, fmt.Errorf("read admin certificate authority: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCA, opts.CertificateAuthorityFile)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}
	} else if opts.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // dev only
		log.Warn("admin.insecureSkipVerify=true: TLS certificate verification is DISABLED (dev only)")
	}
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
	}, nil
}

// FetchAllowedIPAddresses returns the client id to IP/CIDR mapping. An empty
// or null body is an empty mapping; any non-2xx status or malformed body is
// an error.
func (c *Client) FetchAllowedIPAddresses(ctx context.Context) (map[string][]string, error) {
	url := c.baseURL + AllowedIPAddressesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build admin request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.log.Infow("ADMIN request", "http.request.method", req.Method, "url.full", url)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("admin request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read admin response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	clients := map[string][]string{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &clients); err != nil {
			return nil, fmt.Errorf("decode admin response: %w", err)
		}
		if clients == nil {
			clients = map[string][]string{}
		}
	}
	c.log.Infow("ADMIN response", "http.response.status_code", resp.StatusCode, "clientCount", len(clients))
	return clients, nil
}
