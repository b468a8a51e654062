package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// Service loads assets (configuration, schemas) from any location the afs
// storage abstraction supports: file system, embed FS, cloud object stores.
// Every loaded asset has its ${env.KEY} expressions expanded.
type Service struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
}

// New creates a meta service rooted at baseURL; a relative location passed to
// Load is resolved against it.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	return &Service{fs: fs, baseURL: baseURL, fsOptions: options}
}

// Load downloads the asset at location and expands environment expressions.
func (s *Service) Load(ctx context.Context, location string) ([]byte, error) {
	URL := location
	if s.baseURL != "" && !strings.Contains(location, "://") {
		URL = url.Join(s.baseURL, location)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.fsOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %w", URL, err)
	}
	return []byte(expandEnvExpr(string(data))), nil
}
