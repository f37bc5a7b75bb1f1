package teleport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = "[Interface]\nPrivateKey = x\n"

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/devices/token", func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.PIN != "ABCDE" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid pin"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(tokenResponse{DeviceToken: "token-for-" + req.ClientHint})
	})
	mux.HandleFunc("/api/devices/connect", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(sampleConfig))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream unavailable"))
		default:
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte(`{"message":"token expired"}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_DeviceToken(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL+"/api/", time.Second)

	token, err := c.DeviceToken(context.Background(), "hint-1", "ABCDE")
	require.NoError(t, err)
	assert.Equal(t, "token-for-hint-1", token)
}

func TestClient_DeviceToken_RejectedPIN(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL+"/api", time.Second)

	_, err := c.DeviceToken(context.Background(), "hint-1", "WRONG")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid pin", apiErr.Message)
	assert.True(t, IsRejected(err))
}

func TestClient_ConnectDevice(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL+"/api", time.Second)

	cfg, err := c.ConnectDevice(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, cfg)
}

func TestClient_ConnectDevice_Errors(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(srv.URL+"/api", time.Second)

	_, err := c.ConnectDevice(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, err.Error(), "token expired")

	_, err = c.ConnectDevice(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestClient_TransportError(t *testing.T) {
	srv := newBackend(t)
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.DeviceToken(context.Background(), "hint", "ABCDE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact teleport backend")
	assert.False(t, IsRejected(err))
}

func TestClient_ConnectDevice_OversizedResponse(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"at limit", maxConfigSize, false},
		{"over limit", maxConfigSize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("#", tt.size)))
			}))
			defer srv.Close()

			cfg, err := NewClient(srv.URL, 5*time.Second).ConnectDevice(context.Background(), "good")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrResponseTooLarge)
				assert.Empty(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Len(t, cfg, tt.size)
		})
	}
}

func TestClient_ErrorMessageKeepsRunes(t *testing.T) {
	// 199 ASCII bytes then a two-byte rune straddling the 200-byte cap.
	body := strings.Repeat("a", maxMessageLen-1) + "é" + "tail"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ConnectDevice(context.Background(), "good")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, utf8.ValidString(apiErr.Message))
	assert.Equal(t, strings.Repeat("a", maxMessageLen-1), apiErr.Message)
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", truncateMessage("short", 10))
	assert.Equal(t, "ab", truncateMessage("abc", 2))
	assert.Equal(t, "a", truncateMessage("a日本", 3))
	assert.Equal(t, "a日", truncateMessage("a日本", 4))
	assert.Equal(t, "", truncateMessage("日本", 1))
}
