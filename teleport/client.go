// Package teleport is the HTTP client for the AmpliFi Teleport pairing
// backend: it trades a client hint and PIN for a device token, and a
// device token for a WireGuard tunnel configuration.
package teleport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
)

// maxConfigSize caps the tunnel configuration document.
const maxConfigSize = 1 << 20

// maxMessageLen caps a server error message.
const maxMessageLen = 200

// ErrResponseTooLarge is returned for a backend response over maxConfigSize.
var ErrResponseTooLarge = fmt.Errorf("teleport response exceeds %d bytes", maxConfigSize)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("teleport backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("teleport backend returned %d: %s", e.StatusCode, e.Message)
}

// Rejected reports whether the backend refused the credentials, as
// opposed to failing.
func (e *APIError) Rejected() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden ||
		e.StatusCode == http.StatusNotFound ||
		e.StatusCode == http.StatusGone
}

// IsRejected reports whether err is a backend refusal of the PIN or token.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Rejected()
}

// Client talks to the Teleport backend.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = common.HTTPTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		userAgent: common.CommandName,
	}
}

type tokenRequest struct {
	ClientHint string `json:"client_hint"`
	PIN        string `json:"pin"`
}

type tokenResponse struct {
	DeviceToken string `json:"device_token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DeviceToken exchanges a client hint and pairing PIN for a device token.
func (c *Client) DeviceToken(ctx context.Context, clientHint, pin string) (string, error) {
	body, err := json.Marshal(tokenRequest{ClientHint: clientHint, PIN: pin})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := c.newRequest(ctx, "/devices/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("client_hint", common.ShortID(clientHint)).Msg("requesting device token")

	data, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	token := strings.TrimSpace(resp.DeviceToken)
	if token == "" {
		return "", errors.New("teleport backend returned an empty device token")
	}
	return token, nil
}

// ConnectDevice fetches the WireGuard configuration for a device token.
// The document is returned verbatim.
func (c *Client) ConnectDevice(ctx context.Context, token string) (string, error) {
	req, err := c.newRequest(ctx, "/devices/connect", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/plain")

	log.Debug().Msg("requesting tunnel configuration")

	data, err := c.do(req)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", errors.New("teleport backend returned an empty configuration")
	}
	return string(data), nil
}

func (c *Client) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact teleport backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("read teleport response: %w", err)
	}
	tooLarge := len(data) > maxConfigSize

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if tooLarge {
			data = data[:maxConfigSize]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if tooLarge {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// errorMessage extracts a server message from a JSON or plain body.
func errorMessage(data []byte) string {
	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return truncateMessage(strings.TrimSpace(string(data)), maxMessageLen)
}

// truncateMessage cuts msg to at most n bytes without splitting a rune.
func truncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
