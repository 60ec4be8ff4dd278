package manifest

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/status"
)

// TemplateFile is the cached template's name inside the store directory
const TemplateFile = "template.yaml"

// 🗃️ Store keeps the cached template and the generated manifests
type Store struct {
	mgr *status.Manager
}

// 🏭 NewStore creates a store rooted at dir
func NewStore(dir string, scope *status.Scope) *Store {
	return &Store{mgr: status.New(dir, scope)}
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.mgr.BaseDir()
}

// TemplatePath returns the cached template location
func (s *Store) TemplatePath() string {
	return filepath.Join(s.mgr.BaseDir(), TemplateFile)
}

// OutputPath returns where the manifest for namespace is written
func (s *Store) OutputPath(namespace string) string {
	return filepath.Join(s.mgr.BaseDir(), namespace+".yaml")
}

// 📥 Template returns the cached template, fetching it from the live source
// environment and caching it when absent. cached reports a cache hit.
func (s *Store) Template(ctx context.Context, fetcher LiveFetcher, sourceNamespace string) (doc []byte, cached bool, err error) {
	logger := zerolog.Ctx(ctx)

	ok, err := s.mgr.FileExists(ctx, TemplateFile)
	if err != nil {
		return nil, false, err
	}
	if ok {
		doc, err := s.mgr.ReadFile(ctx, TemplateFile)
		if err != nil {
			return nil, false, err
		}
		logger.Debug().Str("path", s.TemplatePath()).Msg("using cached manifest template")
		return doc, true, nil
	}

	if fetcher == nil {
		return nil, false, errors.Errorf("no cached template at %s and no cluster to fetch it from", s.TemplatePath())
	}

	logger.Info().Str("namespace", sourceNamespace).Msg("fetching live manifest template")
	doc, err = fetcher.FetchLiveManifest(ctx, sourceNamespace)
	if err != nil {
		return nil, false, errors.Errorf("fetching live manifest from %s: %w", sourceNamespace, err)
	}
	if err := s.mgr.WriteFileAtomic(ctx, TemplateFile, doc); err != nil {
		return nil, false, errors.Errorf("caching template: %w", err)
	}
	s.mgr.TrackFile(ctx, status.FileInfo{Path: TemplateFile, Status: status.StatusNew, Checksum: status.Checksum(doc)})
	return doc, false, nil
}

// 💾 Write stores the manifest for namespace and returns its path
func (s *Store) Write(ctx context.Context, namespace string, doc []byte) (string, error) {
	name := namespace + ".yaml"

	var before []byte
	if ok, err := s.mgr.FileExists(ctx, name); err != nil {
		return "", err
	} else if ok {
		if before, err = s.mgr.ReadFile(ctx, name); err != nil {
			return "", err
		}
	}

	st := status.Compare(before, doc)
	if st != status.StatusUnchanged {
		if err := s.mgr.WriteFileAtomic(ctx, name, doc); err != nil {
			return "", errors.Errorf("writing manifest: %w", err)
		}
	}
	s.mgr.TrackFile(ctx, status.FileInfo{Path: name, Status: st, Checksum: status.Checksum(doc)})
	return s.OutputPath(namespace), nil
}
