package domain

import "time"

// SummaryItem is one entry of a listing page.
type SummaryItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// ListingPage is the outcome of walking a single listing page.
type ListingPage struct {
	Number int
	URL    string
	Items  []SummaryItem
	Err    error
}

// DetailRecord is the metadata extracted from one detail page.
type DetailRecord struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Thumbnail      string   `json:"thumbnail"`
	EmbedReference string   `json:"videoEmbed"`
	Categories     []string `json:"categories"`
	Fighters       []string `json:"fighters"`
	Description    string   `json:"description"`
}

// StoredRecord is a DetailRecord accepted by the identity store.
type StoredRecord struct {
	ID string
	DetailRecord
	CreatedAt time.Time
}

// DetailResult tells the caller what happened to a resolved record.
type DetailResult struct {
	Record       DetailRecord
	AlreadyKnown bool
	Saved        bool
	Message      string
}

// Acquisition describes a media file written to local storage.
type Acquisition struct {
	Path  string
	Bytes int64
}

// RunStats aggregates the outcome of one pipeline run.
type RunStats struct {
	Pages          int
	FailedPages    int
	Items          int
	Saved          int
	AlreadyKnown   int
	NotPersisted   int
	Failed         int
	Downloaded     int
	DownloadFailed int
	NoMedia        int
	Bytes          int64
	Duration       time.Duration
	NewRecords     []DetailRecord
}
