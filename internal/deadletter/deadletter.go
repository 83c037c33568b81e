// Package deadletter preserves input the pipeline could not process. Each
// capture is written as its own timestamped file so an operator can inspect
// and replay it by hand.
package deadletter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Sink writes dead-letter artifacts into a directory.
type Sink struct {
	dir    string
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewSink creates a Sink rooted at dir. The directory is created lazily on
// first write.
func NewSink(dir string, logger *zap.SugaredLogger) *Sink {
	return &Sink{dir: dir, logger: logger, now: time.Now}
}

// WriteRaw captures raw content (typically an unparsable XML document or
// fragment) as <prefix>_<timestamp>.xml and returns the file path.
func (s *Sink) WriteRaw(prefix, content string) (string, error) {
	return s.write(prefix, "xml", []byte(content))
}

// WriteJSON captures a structured payload (e.g. the validation-error list
// accumulated during normalization) as <prefix>_<timestamp>.json.
func (s *Sink) WriteJSON(prefix string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling dead letter payload: %w", err)
	}
	return s.write(prefix, "json", data)
}

func (s *Sink) write(prefix, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dead letter dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.%s", prefix, s.now().Format("20060102_150405"), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing dead letter %s: %w", name, err)
	}

	s.logger.Warnw("captured dead letter", "path", path, "bytes", len(data))
	return path, nil
}
