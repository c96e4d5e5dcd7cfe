package notifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNtfySendStructured(t *testing.T) {
	var gotPath, gotTitle, gotTags, gotPriority, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	n := NewNtfy(srv.URL+"/", "eth-signal", "tk_123", 3)
	err := n.Send(context.Background(), StructuredMessage{
		Title:    "ETH/USDT 15m 可交易",
		Tags:     []string{"chart_with_upwards_trend", "long"},
		Priority: 4,
		Sections: []MessageSection{{Title: "EMA", Lines: []string{"ema34=2010", " ", "ema144=1990"}}},
		Footer:   "source=okx",
	})
	require.NoError(t, err)
	assert.Equal(t, "/eth-signal", gotPath)
	assert.Equal(t, "ETH/USDT 15m 可交易", gotTitle)
	assert.Equal(t, "chart_with_upwards_trend,long", gotTags)
	assert.Equal(t, "4", gotPriority)
	assert.Equal(t, "Bearer tk_123", gotAuth)
	assert.Equal(t, "**EMA**\n- ema34=2010\n- ema144=1990\n\nsource=okx", gotBody)
}

func TestNtfyRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewNtfy(srv.URL, "t", "", 0)
	n.RetryDelay = time.Millisecond
	err := n.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), hits.Load())
}

func TestNtfyRecoversOnSecondAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	n := NewNtfy(srv.URL, "t", "", 0)
	n.RetryDelay = time.Millisecond
	require.NoError(t, n.SendText(context.Background(), "hello"))
	assert.Equal(t, int32(2), hits.Load())
}

func TestNtfyRequiresTopic(t *testing.T) {
	assert.Error(t, NewNtfy("", "", "", 0).SendText(context.Background(), "x"))
}

func TestRenderMarkdownTruncates(t *testing.T) {
	long := make([]byte, maxStructuredMessageLen+100)
	for i := range long {
		long[i] = 'a'
	}
	body := StructuredMessage{Footer: string(long)}.RenderMarkdown()
	assert.Len(t, body, maxStructuredMessageLen+3)
}
