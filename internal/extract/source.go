package extract

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

var errNoKnownColumns = errors.New("no recognized columns in header")

// Source converts one export document into raw field bags.
type Source interface {
	Extract(r io.Reader) ([]model.RawElement, error)
	Format() string
}

// Registry holds sources keyed by format name.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Panics on duplicate format.
func (r *Registry) Register(s Source) {
	key := strings.ToLower(s.Format())
	if _, ok := r.sources[key]; ok {
		panic("duplicate source format: " + key)
	}
	r.sources[key] = s
}

// Get returns the source for format, or nil.
func (r *Registry) Get(format string) Source {
	return r.sources[strings.ToLower(format)]
}

// ForPath selects a source by file extension.
func (r *Registry) ForPath(path string) (Source, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		ext = "xml"
	}
	s := r.Get(ext)
	if s == nil {
		return nil, errors.Newf("no source registered for %q files", ext)
	}
	return s, nil
}

// DefaultRegistry returns a registry with all built-in sources.
func DefaultRegistry(sink DeadLetter, logger *zap.SugaredLogger) *Registry {
	r := NewRegistry()
	r.Register(New(sink, logger))
	r.Register(NewCSV(sink, logger))
	return r
}
