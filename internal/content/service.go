// Package content defines the boundary to the document-ingestion and
// knowledge-graph query subsystem. The gateway treats it as opaque: every
// call receives an already-resolved workspace handle and operates only
// inside that namespace.
package content

import (
	"context"
	"io"

	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// Document describes an ingested document within a workspace.
type Document struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// QueryResult is the answer to a knowledge-graph query.
type QueryResult struct {
	Workspace string `json:"workspace"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	Sources   []string `json:"sources,omitempty"`
}

// Graph is a workspace's knowledge-graph snapshot.
type Graph struct {
	Workspace string   `json:"workspace"`
	Documents []string `json:"documents"`
}

// Service is the content subsystem as seen by the gateway.
// Implementations must never read or write outside the given handle's
// namespace.
type Service interface {
	// IngestDocument stores a document in the workspace.
	IngestDocument(ctx context.Context, ws workspace.Handle, name string, r io.Reader) (*Document, error)

	// Query answers a query against the workspace's ingested documents.
	Query(ctx context.Context, ws workspace.Handle, query string) (*QueryResult, error)

	// Graph returns the workspace's knowledge-graph snapshot.
	Graph(ctx context.Context, ws workspace.Handle) (*Graph, error)
}
