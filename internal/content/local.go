package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// documentsDir is the subdirectory inside a workspace holding raw documents.
const documentsDir = "documents"

// LocalService is a filesystem-backed content service.
// It stands in for the full ingestion/graph pipeline so the gateway's
// workspace scoping is observable end to end.
type LocalService struct {
	logger zerolog.Logger
}

// NewLocalService creates a filesystem-backed content service.
func NewLocalService(logger zerolog.Logger) *LocalService {
	return &LocalService{
		logger: logger.With().Str("service", "content").Logger(),
	}
}

// IngestDocument stores a document under the workspace namespace.
func (s *LocalService) IngestDocument(ctx context.Context, ws workspace.Handle, name string, r io.Reader) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" || name == "" {
		return nil, fmt.Errorf("invalid document name")
	}

	dir := filepath.Join(ws.Dir, documentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	s.logger.Info().
		Str("workspace", ws.ID).
		Str("document", name).
		Int64("size", size).
		Msg("document ingested")

	return &Document{Name: name, Size: size}, nil
}

// Query answers a query from the workspace's documents.
// This placeholder implementation reports which documents matched the
// query terms; the real pipeline delegates to the graph engine.
func (s *LocalService) Query(ctx context.Context, ws workspace.Handle, query string) (*QueryResult, error) {
	docs, err := s.listDocuments(ctx, ws)
	if err != nil {
		return nil, err
	}

	var sources []string
	terms := strings.Fields(strings.ToLower(query))
	for _, doc := range docs {
		lower := strings.ToLower(doc)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				sources = append(sources, doc)
				break
			}
		}
	}

	return &QueryResult{
		Workspace: ws.ID,
		Query:     query,
		Answer:    fmt.Sprintf("%d of %d documents relevant", len(sources), len(docs)),
		Sources:   sources,
	}, nil
}

// Graph returns the workspace's knowledge-graph snapshot.
func (s *LocalService) Graph(ctx context.Context, ws workspace.Handle) (*Graph, error) {
	docs, err := s.listDocuments(ctx, ws)
	if err != nil {
		return nil, err
	}
	return &Graph{Workspace: ws.ID, Documents: docs}, nil
}

// listDocuments lists the documents stored in a workspace.
func (s *LocalService) listDocuments(ctx context.Context, ws workspace.Handle) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(ws.Dir, documentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			docs = append(docs, entry.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}

// Ensure LocalService implements Service.
var _ Service = (*LocalService)(nil)
