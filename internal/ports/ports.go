package ports

import (
	"context"
	"io"
	"time"

	"github.com/kakmul/ufcserver/internal/domain"
)

// FetchRequest describes a single outbound GET.
type FetchRequest struct {
	URL     string
	Referer string
	Accept  string
}

// PageFetcher downloads HTML documents.
type PageFetcher interface {
	FetchPage(ctx context.Context, req FetchRequest) ([]byte, error)
}

// Prober checks that a remote resource answers with a successful status.
type Prober interface {
	Probe(ctx context.Context, req FetchRequest) error
}

// MediaOpener opens a streaming body. size is -1 when unknown.
type MediaOpener interface {
	OpenStream(ctx context.Context, req FetchRequest) (body io.ReadCloser, size int64, err error)
}

// MarkupExtractor turns fetched HTML into domain values. It performs no I/O.
type MarkupExtractor interface {
	Origin() string
	SameOrigin(raw string) bool
	Listing(markup []byte) ([]domain.SummaryItem, error)
	Detail(pageURL string, markup []byte) (domain.DetailRecord, error)
}

// IdentityStore is the append-only set of accepted records.
type IdentityStore interface {
	ExistsByTitle(ctx context.Context, title string) (bool, error)
	ExistsByEmbedReference(ctx context.Context, ref string) (bool, error)
	Insert(ctx context.Context, record domain.DetailRecord) (domain.StoredRecord, error)
}

// EmbedResolver turns an embed reference into a direct media URL.
type EmbedResolver interface {
	Resolve(ctx context.Context, embedReference string) (string, bool)
}

// Acquirer streams a direct media URL to local storage.
type Acquirer interface {
	Acquire(ctx context.Context, directURL, title string) (domain.Acquisition, error)
}

// Notifier streams digests of new records to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
