// Package embed turns embed-player references into direct media URLs.
package embed

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kakmul/ufcserver/internal/ports"
)

// DefaultIndirectHost serves an HTML player page instead of the media itself.
const DefaultIndirectHost = "spcdn.xyz"

const htmlAccept = "text/html,application/xhtml+xml"

// Resolver fetches player pages for indirect hosts and reads the <video> source.
type Resolver struct {
	fetcher ports.PageFetcher
	hosts   []string
	logger  *slog.Logger
}

var _ ports.EmbedResolver = (*Resolver)(nil)

// NewResolver builds a Resolver; empty hosts selects DefaultIndirectHost.
func NewResolver(fetcher ports.PageFetcher, hosts []string, logger *slog.Logger) *Resolver {
	if len(hosts) == 0 {
		hosts = []string{DefaultIndirectHost}
	}
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			normalized = append(normalized, h)
		}
	}
	return &Resolver{fetcher: fetcher, hosts: normalized, logger: logger.With("component", "embed")}
}

// Resolve returns the reference unchanged unless its host is indirect. For
// indirect hosts it returns ("", false) when no usable source is found.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, bool) {
	if !r.indirect(ref) {
		return ref, true
	}

	page, err := r.fetcher.FetchPage(ctx, ports.FetchRequest{URL: ref, Accept: htmlAccept})
	if err != nil {
		r.logger.Warn("embed page fetch failed", "embed", ref, "error", err)
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		r.logger.Warn("embed page parse failed", "embed", ref, "error", err)
		return "", false
	}

	src := strings.TrimSpace(doc.Find("video source").First().AttrOr("src", ""))
	if src == "" {
		src = strings.TrimSpace(doc.Find("video").First().AttrOr("src", ""))
	}
	if !strings.HasPrefix(src, "http") {
		r.logger.Warn("no direct media source in embed page", "embed", ref, "src", src)
		return "", false
	}
	return src, true
}

func (r *Resolver) indirect(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range r.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
