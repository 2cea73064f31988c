// Package archive writes finished process instances to blob storage and
// sweeps them out of the live store
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/kode4food/timebox"
	"gocloud.dev/blob"

	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// Writer serializes archive records into a blob bucket
	Writer struct {
		bucket BucketWriter
		prefix string
	}

	// BucketWriter is the subset of *blob.Bucket the Writer uses
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}

	// Record is the complete state of a process instance at the moment it
	// leaves the live store
	Record struct {
		ArchivedAt time.Time               `json:"archived_at"`
		Instance   *api.ProcessInstance    `json:"instance"`
		Tokens     []*api.Token            `json:"tokens,omitempty"`
		FlowNodes  []*api.FlowNodeInstance `json:"flow_nodes,omitempty"`
		Joins      []*api.JoinState        `json:"joins,omitempty"`
		History    *api.InstanceHistory    `json:"history,omitempty"`
	}

	streamObject struct {
		StreamID         string            `json:"stream_id"`
		AggregateID      string            `json:"aggregate_id"`
		SnapshotSequence int64             `json:"snapshot_sequence"`
		SnapshotData     json.RawMessage   `json:"snapshot_data"`
		Events           []json.RawMessage `json:"events"`
	}
)

const (
	contentType  = "application/json"
	streamFolder = "_journal"
)

var (
	ErrBucketRequired        = errors.New("bucket is required")
	ErrArchiveRecordRequired = errors.New("archive record is required")
)

func NewWriter(bucket BucketWriter, prefix string) (*Writer, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Writer{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Write stores the record under <prefix>/<definition>/<instance>.json
func (w *Writer) Write(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Instance == nil {
		return ErrArchiveRecordRequired
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := buildArchiveKey(w.prefix, rec.Instance)
	return w.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: contentType,
	})
}

// WriteStream stores a retired journal stream under
// <prefix>/_journal/<aggregate>.json
func (w *Writer) WriteStream(
	ctx context.Context, rec *timebox.ArchiveRecord,
) error {
	if rec == nil {
		return ErrArchiveRecordRequired
	}

	obj := streamObject{
		StreamID:         rec.StreamID,
		AggregateID:      rec.AggregateID.Join(":"),
		SnapshotSequence: rec.SnapshotSequence,
		SnapshotData:     nonEmpty(rec.SnapshotData),
		Events:           slices.DeleteFunc(slices.Clone(rec.Events), isEmpty),
	}
	if len(obj.Events) == 0 {
		obj.Events = nil
	}

	data, err := json.Marshal(&obj)
	if err != nil {
		return err
	}

	key := w.StreamKey(rec.AggregateID)
	return w.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: contentType,
	})
}

// StreamKey returns the object key a retired journal stream is written under
func (w *Writer) StreamKey(id timebox.AggregateID) string {
	return withPrefix(w.prefix, streamFolder+"/"+id.Join("/")+".json")
}

// Key returns the object key a record for inst is written under
func (w *Writer) Key(inst *api.ProcessInstance) string {
	return buildArchiveKey(w.prefix, inst)
}

func buildArchiveKey(prefix string, inst *api.ProcessInstance) string {
	return withPrefix(prefix,
		string(inst.DefinitionID)+"/"+string(inst.ID)+".json",
	)
}

func withPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}

func nonEmpty(msg json.RawMessage) json.RawMessage {
	if isEmpty(msg) {
		return nil
	}
	return msg
}

func isEmpty(msg json.RawMessage) bool {
	return len(strings.TrimSpace(string(msg))) == 0
}
