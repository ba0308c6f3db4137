package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/infrastructure/parser"
	"github.com/kakmul/ufcserver/internal/ports"
)

const testOrigin = "https://watch.example"

type fakeWeb struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]error
	probeErr error
	fetched  []string
	probes   []ports.FetchRequest
}

func newFakeWeb() *fakeWeb {
	return &fakeWeb{pages: map[string]string{}, failures: map[string]error{}}
}

func (f *fakeWeb) FetchPage(_ context.Context, req ports.FetchRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, req.URL)
	if err, ok := f.failures[req.URL]; ok {
		return nil, err
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("%w: %s returned 404 Not Found", domain.ErrFetch, req.URL)
	}
	return []byte(body), nil
}

func (f *fakeWeb) Probe(_ context.Context, req ports.FetchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, req)
	return f.probeErr
}

type countingStore struct {
	ports.IdentityStore
	mu      sync.Mutex
	inserts int
}

func (c *countingStore) Insert(ctx context.Context, rec domain.DetailRecord) (domain.StoredRecord, error) {
	c.mu.Lock()
	c.inserts++
	c.mu.Unlock()
	return c.IdentityStore.Insert(ctx, rec)
}

type fakeEmbeds struct {
	direct map[string]string
}

func (f fakeEmbeds) Resolve(_ context.Context, ref string) (string, bool) {
	direct, ok := f.direct[ref]
	return direct, ok
}

type fakeAcquirer struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (f *fakeAcquirer) Acquire(_ context.Context, _ string, title string) (domain.Acquisition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Acquisition{}, f.err
	}
	f.titles = append(f.titles, title)
	return domain.Acquisition{Path: "/media/" + title + ".mp4", Bytes: 42}, nil
}

type fakeNotifier struct {
	digests []string
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExtractor(t *testing.T) *parser.Extractor {
	t.Helper()
	e, err := parser.NewExtractor(testOrigin)
	require.NoError(t, err)
	return e
}

func listingHTML(paths ...string) string {
	html := "<ul>"
	for _, p := range paths {
		html += fmt.Sprintf(`<li class="item-movie"><a href="%s" title="Title %s"></a></li>`, p, p)
	}
	return html + "</ul>"
}

func detailHTML(title, embed string) string {
	return fmt.Sprintf(`<html><head><meta property="og:title" content="%s"></head><body>
<iframe src="%s"></iframe>
<div id="extras">
  <h3>Categories:</h3><a rel="category tag">UFC</a>
  <h3>Fighters:</h3><a rel="category tag">Fighter A</a><a rel="category tag">Fighter B</a>
</div>
<article class="infobv"><p>First.</p><p>Second.</p><p>Third.</p></article>
</body></html>`, title, embed)
}
