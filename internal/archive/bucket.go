package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/bpmnflow/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

type (
	// Reader loads archive records back out of a blob bucket
	Reader struct {
		bucket *blob.Bucket
		prefix string
	}
)

var ErrRecordNotFound = errors.New("archive record not found")

// OpenBucket opens the bucket named by a gocloud URL, supporting S3, GCS,
// Azure Blob Storage, local directories (file://) and memory (mem://)
func OpenBucket(ctx context.Context, url string) (*blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open archive bucket %s: %w", url, err)
	}
	return bucket, nil
}

func NewReader(bucket *blob.Bucket, prefix string) (*Reader, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Reader{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Read returns the record archived for an instance of a definition
func (r *Reader) Read(
	ctx context.Context, def api.DefinitionID, id api.ProcessInstanceID,
) (*Record, error) {
	key := buildArchiveKey(r.prefix, &api.ProcessInstance{
		ID:           id,
		DefinitionID: def,
	})
	data, err := r.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Remove deletes the record archived for an instance. A missing record is
// not an error
func (r *Reader) Remove(
	ctx context.Context, def api.DefinitionID, id api.ProcessInstanceID,
) error {
	key := buildArchiveKey(r.prefix, &api.ProcessInstance{
		ID:           id,
		DefinitionID: def,
	})
	err := r.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}
