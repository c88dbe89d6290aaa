package config

const (
	// MaxDocumentTitleLength bounds titles, whether typed or produced by a
	// transform.
	MaxDocumentTitleLength = 255

	// MaxDocumentContentLength bounds raw note text (1 MiB).
	MaxDocumentContentLength = 1 << 20

	// MaxProcessedBlocks bounds how many blocks a transform may store.
	MaxProcessedBlocks = 200
)
