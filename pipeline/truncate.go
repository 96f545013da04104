package pipeline

import (
	"context"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/tokencount"
)

// truncate loads the blobs behind entries and drops the oldest prefix
// that doesn't fit within maxProcessTokens, keeping the newest suffix
// (§4.7's "truncate" stage). entries is assumed oldest-first.
func (p *Pipeline) truncate(ctx context.Context, projectID, userID string, entries []*buffer.Entry, maxProcessTokens int) ([]*blob.Blob, error) {
	blobs := make([]*blob.Blob, len(entries))
	sizes := make([]int, len(entries))
	for i, e := range entries {
		b, err := p.Blobs.GetBlob(ctx, projectID, userID, e.BlobID)
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "pipeline: failed to load blob %s", e.BlobID)
		}
		blobs[i] = b
		sizes[i] = e.TokenSize
	}

	if maxProcessTokens <= 0 {
		return blobs, nil
	}

	start := tokencount.NewestWithinBudget(sizes, maxProcessTokens)
	return blobs[start:], nil
}
