package port

import "context"

// ArchivedReport locates a report snapshot in object storage.
type ArchivedReport struct {
	Key      string
	Location string
	ETag     string
}

// ReportArchive keeps immutable JSON snapshots of reports in object storage.
// The bucket and the lifetime of signed links belong to the implementation.
type ReportArchive interface {
	Put(ctx context.Context, key string, body []byte) (*ArchivedReport, error)
	SignedURL(ctx context.Context, key string) (string, error)
}
