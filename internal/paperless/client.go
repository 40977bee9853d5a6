// Package paperless uploads combined documents to a paperless-style
// document-management backend.
package paperless

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client talks to one paperless instance.
type Client struct {
	BaseURL    string
	Token      string
	httpClient *http.Client
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Upload posts the document at path with the given title. Delivery is
// at-most-once; callers decide whether to retry.
func (c *Client) Upload(ctx context.Context, path, title string) error {
	if c.BaseURL == "" {
		return fmt.Errorf("upstream URL is not configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document for upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			return fmt.Errorf("failed to build upload request: %w", err)
		}
	}
	part, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read document for upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload request: %w", err)
	}

	url := c.BaseURL + "/api/documents/post_document/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.Token != "" {
		req.Header.Set("Authorization", "Token "+c.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
