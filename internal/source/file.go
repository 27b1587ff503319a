package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/leadsync/internal/model"
)

// FileSource reads a batch of postings from a YAML or JSON file on every fetch.
// The file holds a list of postings, or a mapping with a "postings" list.
type FileSource struct {
	path   string
	logger *slog.Logger
}

var _ model.PostingSource = (*FileSource)(nil)

// NewFileSource returns a source backed by the file at path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

type postingFile struct {
	Postings []model.RawPosting `json:"postings" yaml:"postings"`
}

// FetchPostings re-reads the file, so edits show up on the next run.
func (s *FileSource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", model.ErrSourceUnavailable, s.path, err)
	}

	postings, err := decodePostings(data, strings.ToLower(filepath.Ext(s.path)))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", model.ErrSourceUnavailable, s.path, err)
	}

	batch := cleanBatch(postings, s.path, s.logger)
	s.logger.Debug("postings loaded from file", "path", s.path, "count", len(batch))
	return batch, nil
}

func decodePostings(data []byte, ext string) ([]model.RawPosting, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	if ext == ".json" {
		if strings.HasPrefix(trimmed, "[") {
			var list []model.RawPosting
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, err
			}
			return list, nil
		}
		var wrapped postingFile
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Postings, nil
	}

	var list []model.RawPosting
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped postingFile
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Postings, nil
}
