package embed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

type stubFetcher struct {
	body  string
	err   error
	calls []ports.FetchRequest
}

func (s *stubFetcher) FetchPage(_ context.Context, req ports.FetchRequest) ([]byte, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolvePassesThroughDirectHosts(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	r := NewResolver(fetcher, nil, quietLogger())

	got, ok := r.Resolve(context.Background(), "https://cdn.example/v.mp4")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/v.mp4", got)
	assert.Empty(t, fetcher.calls)
}

func TestResolveReadsVideoSource(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{body: `<html><body><video><source src="https://media.example/a.mp4"></video></body></html>`}
	r := NewResolver(fetcher, nil, quietLogger())

	got, ok := r.Resolve(context.Background(), "https://player.spcdn.xyz/e/123")
	require.True(t, ok)
	assert.Equal(t, "https://media.example/a.mp4", got)
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, htmlAccept, fetcher.calls[0].Accept)
}

func TestResolveFallsBackToVideoSrc(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{body: `<video src="https://media.example/b.mp4"></video>`}
	r := NewResolver(fetcher, []string{"spcdn.xyz"}, quietLogger())

	got, ok := r.Resolve(context.Background(), "https://spcdn.xyz/e/9")
	require.True(t, ok)
	assert.Equal(t, "https://media.example/b.mp4", got)
}

func TestResolveFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]*stubFetcher{
		"no video element": {body: `<html><body><p>gone</p></body></html>`},
		"relative source":  {body: `<video><source src="/a.mp4"></video>`},
		"blob source":      {body: `<video src="blob:https://spcdn.xyz/1"></video>`},
		"fetch error":      {err: errors.Join(domain.ErrFetch, errors.New("503"))},
	}

	for name, fetcher := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := NewResolver(fetcher, nil, quietLogger())
			got, ok := r.Resolve(context.Background(), "https://spcdn.xyz/e/1")
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}
