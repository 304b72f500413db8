package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"duochat/auth"
	"duochat/observability"
	"duochat/services"
)

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	phraseHash, err := auth.HashSecretPhrase("open sesame")
	require.NoError(t, err)

	handler := LoginHandler(services.NewAuthService(phraseHash, 24*time.Hour), slog.Default())
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestLoginHandler_Success(t *testing.T) {
	req := require.New(t)
	server := loginServer(t)

	resp, err := http.Post(server.URL, "application/json", strings.NewReader(`{"secretPhrase":"open sesame"}`))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var body loginResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.True(body.Success)
	req.NotEmpty(body.Token)

	_, err = auth.ValidateToken(body.Token)
	req.NoError(err)
}

func TestLoginHandler_WrongPhrase(t *testing.T) {
	req := require.New(t)
	server := loginServer(t)

	resp, err := http.Post(server.URL, "application/json", strings.NewReader(`{"secretPhrase":"wrong"}`))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	var body loginResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.False(body.Success)
	req.Empty(body.Token)
}

func TestLoginHandler_MalformedBody(t *testing.T) {
	req := require.New(t)
	server := loginServer(t)

	resp, err := http.Post(server.URL, "application/json", strings.NewReader("{"))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestLoginHandler_MethodNotAllowed(t *testing.T) {
	req := require.New(t)
	server := loginServer(t)

	resp, err := http.Get(server.URL)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLivenessHandler(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(LivenessHandler(observability.NewManager()))
	defer server.Close()

	resp, err := http.Get(server.URL)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(resp.Header.Get("Content-Type"), "text/plain")
}

func TestStatsHandler(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewManager()
	monitoring.IncrMessagesPosted()
	monitoring.Refresh(0, 0)

	server := httptest.NewServer(StatsHandler(monitoring))
	defer server.Close()

	resp, err := http.Get(server.URL)
	req.NoError(err)
	defer resp.Body.Close()

	var stats observability.ServerStats
	req.NoError(json.NewDecoder(resp.Body).Decode(&stats))
	req.Equal(uint64(1), stats.MessagesPosted)
}
