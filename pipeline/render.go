package pipeline

import (
	"strings"

	"github.com/memobase-dev/memobase-go/blob"
)

// renderTranscript joins kept blobs into the single text block every
// extraction-family prompt operates over.
func renderTranscript(blobs []*blob.Blob) string {
	parts := make([]string, len(blobs))
	for i, b := range blobs {
		parts[i] = b.Render()
	}
	return strings.Join(parts, "\n")
}
