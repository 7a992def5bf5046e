package storage

import (
	"context"
	"errors"
	"io"
)

// Namespace selects one of the two independent blob namespaces.
type Namespace string

const (
	NamespaceAudio Namespace = "audio"
	NamespaceImage Namespace = "image"
)

// ErrObjectNotFound is returned when a blob identifier resolves to nothing.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Size         int64
	ContentType  string
	OriginalName string
}

// BlobStore is the chunked binary store behind the catalog. Blobs are
// immutable once written and addressed by generated identifiers.
//
// The ingestion flow writes a blob first and the catalog row second with no
// compensating transaction between them; a failure in between leaves an
// orphaned blob.
type BlobStore interface {
	Put(ctx context.Context, ns Namespace, id string, r io.Reader, size int64, contentType, originalName string) error
	Open(ctx context.Context, ns Namespace, id string) (io.ReadCloser, error)
	Stat(ctx context.Context, ns Namespace, id string) (ObjectInfo, error)
	Remove(ctx context.Context, ns Namespace, id string) error
}
