package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTextReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>blocked</html>"))
	}))
	defer srv.Close()

	c, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)
	text, err := c.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>blocked</html>", text)
}

func TestFetchTextNon2xxIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.Client())
	_, err := c.FetchText(context.Background(), srv.URL)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusTooManyRequests, netErr.Status)
}

func TestFetchTextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Config{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.FetchText(context.Background(), srv.URL)
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestNewRejectsBadProxy(t *testing.T) {
	_, err := New(Config{ProxyEnabled: true, ProxyURL: "://bad"})
	assert.Error(t, err)
}
