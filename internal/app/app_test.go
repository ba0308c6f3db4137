package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakmul/ufcserver/internal/config"
)

func newSite(t *testing.T, digests *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<ul><li class="item-movie"><a href="/ufc-300" title="UFC 300"></a></li></ul>`)
	})
	mux.HandleFunc("/ufc-300", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<meta property="og:title" content="UFC 300"><iframe src="%s/media/300.mp4"></iframe>`, srv.URL)
	})
	mux.HandleFunc("/media/300.mp4", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not really a video")
	})
	mux.HandleFunc("/bottoken/sendMessage", func(w http.ResponseWriter, _ *http.Request) {
		digests.Add(1)
		fmt.Fprint(w, `{"ok":true}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, origin string) config.Config {
	t.Helper()

	return config.Config{
		Site:     config.SiteConfig{Origin: origin},
		HTTP:     config.HTTPConfig{Timeout: 5 * time.Second},
		Pipeline: config.PipelineConfig{MaxPages: 1, SkipKnown: true},
		Download: config.DownloadConfig{Dir: filepath.Join(t.TempDir(), "media"), Extension: ".mp4"},
		Server:   config.ServerConfig{Addr: "127.0.0.1:0"},
		Logging:  config.LoggingConfig{Level: "error"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.Config{}, quietLogger())
	assert.Error(t, err)
}

func TestScrapeWithMemoryStoreAndDownload(t *testing.T) {
	t.Parallel()

	var digests atomic.Int32
	site := newSite(t, &digests)
	cfg := testConfig(t, site.URL)
	cfg.Pipeline.Download = true
	cfg.Notifications.Telegram = config.TelegramConfig{BotToken: "token", ChatID: "1", APIBase: site.URL}

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	stats, err := a.Scrape(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, int32(1), digests.Load())

	data, err := os.ReadFile(filepath.Join(cfg.Download.Dir, "UFC_300.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "not really a video", string(data))

	stats, err = a.Scrape(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AlreadyKnown)
	assert.Zero(t, stats.Downloaded)
}

func TestNewSkipsDownloadDirectoryWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://watch.example")
	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(cfg.Download.Dir)
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, a.Migrate(context.Background()))
}

func TestScheduledScrapeStopsOnCancel(t *testing.T) {
	t.Parallel()

	var digests atomic.Int32
	site := newSite(t, &digests)
	cfg := testConfig(t, site.URL)
	cfg.Scheduler.Interval = time.Hour

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := a.Scrape(ctx, 0)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled scrape did not stop")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t, "https://watch.example"), quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
