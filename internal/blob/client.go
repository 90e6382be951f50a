package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verbs-tickets/internal/logger"
)

// Client talks to the Vercel Blob REST API. Uploads are a single PUT of the
// raw bytes to /{pathname}; the response carries the public URL.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL, token string, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     log,
	}
}

// PutResult is the subset of the upload response the service uses.
type PutResult struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// Put uploads body under pathname and returns the stored blob's public URL.
func (c *Client) Put(ctx context.Context, pathname string, body io.Reader, contentType string) (*PutResult, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, pathname)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("x-api-version", "7")
	if contentType != "" {
		req.Header.Set("x-content-type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("blob store returned %d: %s", resp.StatusCode, raw)
	}

	var result PutResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	c.logger.Info("BLOB", fmt.Sprintf("Uploaded %s", result.Pathname))
	return &result, nil
}
