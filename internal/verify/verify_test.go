package verify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	resp  FetchResponse
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ FetchRequest) (FetchResponse, error) {
	f.calls++
	return f.resp, f.err
}

type fakeDetector struct{ promote bool }

func (d fakeDetector) ShouldPromote(FetchResponse) bool { return d.promote }

type fakeBlobs struct {
	mu    sync.Mutex
	paths []string
}

func (b *fakeBlobs) PutObject(_ context.Context, path, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	return "memory://" + path, nil
}

type fakeStore struct{ saved []Result }

func (s *fakeStore) Save(_ context.Context, r Result) error {
	s.saved = append(s.saved, r)
	return nil
}

type fakePublisher struct {
	topics   []string
	payloads []any
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

type fakeHasher struct{}

func (fakeHasher) Hash([]byte) (string, error) { return "abc123", nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

const page = `<html><body><p>Read <a href="https://www.target.com/guide/" rel="noopener">The Link Building Guide</a></p></body></html>`

func TestScore(t *testing.T) {
	t.Parallel()

	require.Equal(t, 100, Score(Result{StatusCode: 200, LinkFound: true, AnchorMatches: true, Dofollow: true}))
	require.Equal(t, 70, Score(Result{StatusCode: 200, LinkFound: true}))
	require.Equal(t, 20, Score(Result{StatusCode: 301}))
	require.Equal(t, 0, Score(Result{StatusCode: 404, AnchorMatches: true, Dofollow: true}))
	require.Equal(t, 40, Score(Result{StatusCode: 200, AnchorMatches: true}))
}

func TestScoreDofollowRequiresFoundLink(t *testing.T) {
	t.Parallel()

	missing := Result{StatusCode: http.StatusOK}
	require.Equal(t, pointsStatusOK, Score(missing))

	found := Result{StatusCode: http.StatusOK, LinkFound: true, Dofollow: IsDofollow("noopener")}
	require.Equal(t, pointsStatusOK+pointsLinkFound+pointsDofollow, Score(found))

	nofollow := Result{StatusCode: http.StatusOK, LinkFound: true, Dofollow: IsDofollow("nofollow ugc")}
	require.Equal(t, pointsStatusOK+pointsLinkFound, Score(nofollow))
}

func TestNormalizeLink(t *testing.T) {
	t.Parallel()

	require.Equal(t, "target.com/guide", NormalizeLink("https://www.target.com/guide/"))
	require.Equal(t, "target.com/guide", NormalizeLink("http://TARGET.com/guide"))
	require.Equal(t, "target.com", NormalizeLink("target.com"))
	require.Equal(t, "target.com/a?x=1", NormalizeLink("https://target.com/a/?x=1#frag"))
}

func TestFindLinkResolvesRelativeHrefs(t *testing.T) {
	t.Parallel()

	body := []byte(`<a href="/other">x</a><a href="/guide" rel="nofollow" target="_blank">  Our   guide </a>`)
	attrs, found, err := FindLink(body, "https://target.com/blog/post", "https://target.com/guide")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "/guide", attrs.Href)
	require.Equal(t, "nofollow", attrs.Rel)
	require.Equal(t, "_blank", attrs.Target)
	require.Equal(t, "Our guide", attrs.AnchorText)
	require.False(t, IsDofollow(attrs.Rel))
}

func TestAnchorMatches(t *testing.T) {
	t.Parallel()

	attrs := LinkAttributes{AnchorText: "The Link Building Guide"}
	require.True(t, AnchorMatches(attrs, "link building"))
	require.True(t, AnchorMatches(attrs, ""))
	require.False(t, AnchorMatches(attrs, "seo audit"))
}

func TestVerifyFoundLink(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: FetchResponse{
		URL:           "https://source.com/post",
		StatusCode:    http.StatusOK,
		Body:          []byte(page),
		RedirectChain: []string{"http://source.com/post"},
	}}
	blobs := &fakeBlobs{}
	store := &fakeStore{}
	pub := &fakePublisher{}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	v, err := New(Deps{
		Static:    static,
		Blobs:     blobs,
		Store:     store,
		Publisher: pub,
		Hasher:    fakeHasher{},
		Clock:     fixedClock{t: now},
	}, Config{Topic: "events"}, nil)
	require.NoError(t, err)

	res, err := v.Verify(context.Background(), Request{
		SourceURL:  "http://source.com/post",
		TargetURL:  "https://target.com/guide",
		AnchorText: "link building",
	})
	require.NoError(t, err)
	require.True(t, res.LinkFound)
	require.True(t, res.Dofollow)
	require.True(t, res.AnchorMatches)
	require.Equal(t, 100, res.Score)
	require.Equal(t, now, res.CheckedAt)
	require.Equal(t, []string{"http://source.com/post"}, res.RedirectChain)
	require.Equal(t, "memory://snapshots/source.com/abc123.html", res.SnapshotURI)
	require.Equal(t, []string{"snapshots/source.com/abc123.html"}, blobs.paths)
	require.Len(t, store.saved, 1)
	require.Equal(t, []string{"events"}, pub.topics)
	payload, ok := pub.payloads[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, EventVerified, payload["event"])
}

func TestVerifyMissingLink(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: FetchResponse{URL: "https://source.com/", StatusCode: http.StatusNotFound, Body: []byte("<p>gone</p>")}}
	v, err := New(Deps{Static: static, Hasher: fakeHasher{}, Clock: fixedClock{}}, Config{}, nil)
	require.NoError(t, err)

	res, err := v.Verify(context.Background(), Request{SourceURL: "https://source.com/", TargetURL: "https://target.com/"})
	require.NoError(t, err)
	require.False(t, res.LinkFound)
	require.Nil(t, res.LinkAttributes)
	require.Equal(t, 0, res.Score)
}

func TestVerifyPromotesToHeadless(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: FetchResponse{URL: "https://spa.com/", StatusCode: 200, Body: []byte(`<div id="root"></div>`)}}
	headless := &fakeFetcher{resp: FetchResponse{URL: "https://spa.com/", StatusCode: 200, Body: []byte(page)}}
	v, err := New(Deps{
		Static:   static,
		Headless: headless,
		Detector: fakeDetector{promote: true},
		Hasher:   fakeHasher{},
		Clock:    fixedClock{},
	}, Config{HeadlessEnabled: true}, nil)
	require.NoError(t, err)

	res, err := v.Verify(context.Background(), Request{SourceURL: "https://spa.com/", TargetURL: "https://target.com/guide"})
	require.NoError(t, err)
	require.Equal(t, 1, headless.calls)
	require.True(t, res.UsedHeadless)
	require.True(t, res.LinkFound)
}

func TestVerifyRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	v, err := New(Deps{Static: &fakeFetcher{}, Hasher: fakeHasher{}, Clock: fixedClock{}}, Config{}, nil)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), Request{SourceURL: "ftp://x", TargetURL: "https://target.com"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "source_url"))

	_, err = v.Verify(context.Background(), Request{SourceURL: "https://x.com", TargetURL: "nope"})
	require.ErrorContains(t, err, "target_url")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestVerifyFetchError(t *testing.T) {
	t.Parallel()

	v, err := New(Deps{Static: &fakeFetcher{err: errors.New("dial tcp: refused")}, Hasher: fakeHasher{}, Clock: fixedClock{}}, Config{}, nil)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), Request{SourceURL: "https://x.com", TargetURL: "https://target.com"})
	require.ErrorContains(t, err, "fetch source page")
}

func TestNewRequiresStaticFetcher(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{}, nil)
	require.Error(t, err)
}
