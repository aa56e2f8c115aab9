package headless

import (
	"context"
	"net/http"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)
	require.NotNil(t, fetcher.slots)
	require.Equal(t, defaultNavigationTimeout, fetcher.cfg.NavigationTimeout)
	require.Equal(t, defaultSettleDelay, fetcher.cfg.SettleDelay)

	unlimited, err := NewChromedp(Config{})
	require.NoError(t, err)
	t.Cleanup(unlimited.Close)
	require.Nil(t, unlimited.slots)
}

func TestFetchWaitsForSlotUntilCanceled(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{MaxParallel: 1})
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)
	require.True(t, fetcher.slots.TryAcquire(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.Fetch(ctx, verify.FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{"X-Test": {"a", "b"}, "X-One": {"1"}, "X-None": {}})
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "1", netHeaders["X-One"])
	require.NotContains(t, netHeaders, "X-None")
}

func TestDocumentTrackerKeepsTopLevelDocument(t *testing.T) {
	t.Parallel()

	doc := &documentTracker{}
	doc.observe(&network.EventRequestWillBeSent{
		Type:             network.ResourceTypeDocument,
		RedirectResponse: &network.Response{Status: 301, URL: "http://example.com/old"},
	})
	doc.observe(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  200,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc", "Set-Cookie": []any{"a=1", "b=2"}},
		},
	})
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 404, URL: "https://example.com/app.js"},
	})

	resp := doc.response("https://req", "https://final")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "abc", resp.Headers.Get("X-Request-ID"))
	require.Equal(t, []string{"a=1", "b=2"}, resp.Headers.Values("Set-Cookie"))
	require.Equal(t, "https://example.com/rendered", resp.URL)
	require.Equal(t, []string{"http://example.com/old"}, resp.RedirectChain)
}

func TestDocumentTrackerFallbacks(t *testing.T) {
	t.Parallel()

	doc := &documentTracker{}
	resp := doc.response("https://req", "https://final")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "https://final", resp.URL)
	require.Nil(t, resp.RedirectChain)

	resp = doc.response("https://req", "")
	require.Equal(t, "https://req", resp.URL)
}
