package detector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	resp := verify.FetchResponse{
		StatusCode: 200,
		Body:       []byte(""),
	}
	require.True(t, h.ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	resp := verify.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<div id="__next"></div>`),
	}
	require.True(t, h.ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	resp := verify.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><script>var a=1;</script><p>t</p></html>`),
	}
	require.True(t, h.ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_DisabledForNon200(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	resp := verify.FetchResponse{
		StatusCode: 404,
		Body:       []byte("not found"),
	}
	require.False(t, h.ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_FrameworkMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	for _, body := range []string{`<div id="__nuxt"></div>`, `<app-root ng-version="17.0.0"></app-root>`, `<div data-v-app></div>`} {
		resp := verify.FetchResponse{StatusCode: 200, Body: []byte(body)}
		require.True(t, h.ShouldPromote(resp), body)
	}
}

func TestHeuristic_ShouldPromote_ServerRenderedArticle(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	body := `<html><body><article><h1>Guide</h1><p>Read <a href="https://target.com">our partner</a> for details.</p></article></body></html>`
	resp := verify.FetchResponse{StatusCode: 200, Body: []byte(body)}
	require.False(t, h.ShouldPromote(resp))
	require.Equal(t, DefaultShortBody, h.ShortBody)
}

func TestHeuristic_ShouldPromote_FilledRootIsNotAnApp(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	body := `<div id="root"><p>Static copy with <a href="https://target.com">a link</a>.</p></div>`
	require.False(t, h.ShouldPromote(verify.FetchResponse{StatusCode: 200, Body: []byte(body)}))

	empty := `<body><div id="root"></div><script src="/bundle.js"></script></body>`
	require.True(t, h.ShouldPromote(verify.FetchResponse{StatusCode: 200, Body: []byte(empty)}))
}

func TestHeuristic_ShouldPromote_LongScriptPageIsKept(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(64)
	body := `<html><head><script>window.analytics = {};</script></head><body><p>Plenty of server rendered copy.</p></body></html>`
	require.False(t, h.ShouldPromote(verify.FetchResponse{StatusCode: 200, Body: []byte(body)}))
}
