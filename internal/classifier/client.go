// Package classifier talks to the remote sign classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request defaults.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second

	// PredictPath is appended to the service base URL.
	PredictPath = "/predict/"
	// FieldName is the multipart field that carries the image.
	FieldName = "image"
	// FileName is the file name reported for the uploaded crop.
	FileName = "hand.jpg"
)

// ErrStatus is returned when the service answers with a non-2xx status.
var ErrStatus = errors.New("unexpected status")

// Client uploads cropped hand images and returns the predicted symbol.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the service at baseURL.
// A non-positive timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
	}
}

// NewWithHTTPClient creates a Client that uses hc for requests.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// predictResponse is the service reply. The symbol arrives in "filename".
type predictResponse struct {
	Filename string `json:"filename"`
}

// Classify posts jpeg as a multipart upload and returns the predicted
// symbol. An empty symbol with a nil error means no confident prediction.
func (c *Client) Classify(ctx context.Context, jpeg []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile(FieldName, FileName)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(jpeg); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PredictPath, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("predict %s: %w: %s", resp.Status, ErrStatus, strings.TrimSpace(string(msg)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("predict decode: %w", err)
	}
	return out.Filename, nil
}
