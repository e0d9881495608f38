package objects

import "context"

// ChunkSource is the external chunker collaborator: a byte-stream
// producer that yields successive chunk_bytes events. The core treats it
// as an arbitrary byte iterator and never implements one itself — file
// chunking lives outside this package.
type ChunkSource interface {
	// Next returns the next chunk, or ok=false once the source is
	// exhausted.
	Next(ctx context.Context) (chunk []byte, ok bool, err error)
}
