// Package fetch downloads PDFs referenced by pdf_url.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"pdf2html/internal/config"
	"pdf2html/internal/domain"
)

// Client downloads remote PDFs.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// New returns a Client configured from cfg.
func New(cfg config.Config) *Client {
	return &Client{
		http:      &http.Client{},
		timeout:   cfg.FetchTimeout(),
		maxBytes:  cfg.Fetch.MaxBytes,
		userAgent: cfg.Fetch.UserAgent,
	}
}

// ValidateURL accepts only absolute http(s) URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.ErrInvalidURL
	}
	return u, nil
}

// Download fetches raw and returns its body together with the file name
// taken from the final (post-redirect) URL path.
func (c *Client) Download(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return nil, "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: unexpected status code %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		if resp.ContentLength > c.maxBytes {
			return nil, "", fmt.Errorf("%w: pdf_url content length %d", domain.ErrTooLarge, resp.ContentLength)
		}
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, "", fmt.Errorf("%w: pdf_url body exceeds %d bytes", domain.ErrTooLarge, c.maxBytes)
	}

	return data, filenameFromURL(resp.Request.URL), nil
}

func filenameFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
