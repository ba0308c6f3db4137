package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/infrastructure/storage"
	"github.com/kakmul/ufcserver/internal/ports"
)

type failingStore struct {
	ports.IdentityStore
	err error
}

func (f failingStore) ExistsByTitle(context.Context, string) (bool, error) {
	return false, f.err
}

func newResolver(t *testing.T, web *fakeWeb, store ports.IdentityStore) *DetailResolver {
	t.Helper()
	return NewDetailResolver(web, web, newExtractor(t), store, quietLogger())
}

func TestResolveSavesThenReportsKnown(t *testing.T) {
	t.Parallel()

	detailURL := testOrigin + "/ufc-300"
	web := newFakeWeb()
	web.pages[detailURL] = detailHTML("UFC 300", "https://embed.example/x")
	store := &countingStore{IdentityStore: storage.NewMemoryRepository()}
	r := newResolver(t, web, store)

	first, err := r.Resolve(context.Background(), detailURL)
	require.NoError(t, err)
	assert.True(t, first.Saved)
	assert.False(t, first.AlreadyKnown)
	assert.Empty(t, first.Message)
	assert.Equal(t, "UFC 300", first.Record.Title)
	assert.Equal(t, []string{"UFC"}, first.Record.Categories)
	assert.Equal(t, []string{"Fighter A", "Fighter B"}, first.Record.Fighters)
	assert.Equal(t, "First. Second.", first.Record.Description)

	second, err := r.Resolve(context.Background(), detailURL)
	require.NoError(t, err)
	assert.False(t, second.Saved)
	assert.True(t, second.AlreadyKnown)
	assert.Equal(t, AlreadyKnownMessage, second.Message)
	assert.Equal(t, first.Record, second.Record)
	assert.Equal(t, 1, store.inserts)

	require.Len(t, web.probes, 2)
	assert.Equal(t, "https://embed.example/x", web.probes[0].URL)
	assert.Equal(t, detailURL, web.probes[0].Referer)
}

func TestResolveKnownByEitherKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryRepository()
	_, err := store.Insert(ctx, domain.DetailRecord{Title: "Old title", EmbedReference: "https://embed.example/x"})
	require.NoError(t, err)

	web := newFakeWeb()
	web.pages[testOrigin+"/renamed"] = detailHTML("New title", "https://embed.example/x")
	r := newResolver(t, web, store)

	got, err := r.Resolve(ctx, testOrigin+"/renamed")
	require.NoError(t, err)
	assert.True(t, got.AlreadyKnown)
	assert.Len(t, store.Records(), 1)
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	storageErr := errors.Join(domain.ErrStorage, errors.New("connection refused"))

	cases := []struct {
		name  string
		url   string
		setup func(*fakeWeb)
		store ports.IdentityStore
		want  error
	}{
		{
			name: "foreign origin",
			url:  "https://other.example/ufc-300",
			want: domain.ErrValidation,
		},
		{
			name: "not a url",
			url:  "ufc-300",
			want: domain.ErrValidation,
		},
		{
			name: "fetch failure",
			url:  testOrigin + "/missing",
			want: domain.ErrFetch,
		},
		{
			name: "no frame",
			url:  testOrigin + "/no-frame",
			setup: func(w *fakeWeb) {
				w.pages[testOrigin+"/no-frame"] = `<html><body><h1>Nothing</h1></body></html>`
			},
			want: domain.ErrNotFound,
		},
		{
			name: "embed unreachable",
			url:  testOrigin + "/ufc-300",
			setup: func(w *fakeWeb) {
				w.pages[testOrigin+"/ufc-300"] = detailHTML("UFC 300", "https://embed.example/x")
				w.probeErr = errors.Join(domain.ErrFetch, errors.New("403 Forbidden"))
			},
			want: domain.ErrEmbedUnreachable,
		},
		{
			name: "lookup failure",
			url:  testOrigin + "/ufc-300",
			setup: func(w *fakeWeb) {
				w.pages[testOrigin+"/ufc-300"] = detailHTML("UFC 300", "https://embed.example/x")
			},
			store: failingStore{IdentityStore: storage.NewMemoryRepository(), err: storageErr},
			want:  domain.ErrStorage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			web := newFakeWeb()
			if tc.setup != nil {
				tc.setup(web)
			}
			store := tc.store
			if store == nil {
				store = storage.NewMemoryRepository()
			}

			_, err := newResolver(t, web, store).Resolve(context.Background(), tc.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

type rejectingStore struct {
	*storage.MemoryRepository
	err error
}

func (r rejectingStore) Insert(context.Context, domain.DetailRecord) (domain.StoredRecord, error) {
	return domain.StoredRecord{}, r.err
}

func TestResolveInsertOutcomes(t *testing.T) {
	t.Parallel()

	detailURL := testOrigin + "/ufc-300"
	web := newFakeWeb()
	web.pages[detailURL] = detailHTML("UFC 300", "https://embed.example/x")

	lostRace := newResolver(t, web, rejectingStore{storage.NewMemoryRepository(), domain.ErrAlreadyExists})
	got, err := lostRace.Resolve(context.Background(), detailURL)
	require.NoError(t, err)
	assert.True(t, got.AlreadyKnown)
	assert.Equal(t, AlreadyKnownMessage, got.Message)

	broken := newResolver(t, web, rejectingStore{storage.NewMemoryRepository(), domain.ErrStorage})
	got, err = broken.Resolve(context.Background(), detailURL)
	require.NoError(t, err)
	assert.False(t, got.Saved)
	assert.False(t, got.AlreadyKnown)
	assert.Equal(t, "UFC 300", got.Record.Title)
}
