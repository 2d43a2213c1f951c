// Package emitter writes the final listing collection to its destinations.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// Sink is a destination for the merged collection.
type Sink interface {
	Name() string
	Write(ctx context.Context, listings []models.Listing) error
}

// Emit writes listings to every sink. A failing sink does not stop the
// others; all failures are returned joined.
func Emit(ctx context.Context, listings []models.Listing, sinks ...Sink) error {
	if listings == nil {
		listings = []models.Listing{}
	}

	var errs []error
	for _, s := range sinks {
		start := time.Now()
		if err := s.Write(ctx, listings); err != nil {
			slog.Error("sink failed", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		slog.Info("listings emitted", "sink", s.Name(), "count", len(listings), "duration", time.Since(start))
	}
	return errors.Join(errs...)
}

// Encode renders listings as a JSON array.
func Encode(listings []models.Listing, indent bool) ([]byte, error) {
	if listings == nil {
		listings = []models.Listing{}
	}
	if indent {
		return json.MarshalIndent(listings, "", "  ")
	}
	return json.Marshal(listings)
}

// FileSink writes the collection to a local JSON file.
type FileSink struct {
	Path   string
	Indent bool
}

// NewFileSink creates a file sink.
func NewFileSink(path string, indent bool) *FileSink {
	return &FileSink{Path: path, Indent: indent}
}

func (f *FileSink) Name() string { return "file:" + f.Path }

// Write replaces the file atomically: readers see the old or the new
// document, never a partial one.
func (f *FileSink) Write(ctx context.Context, listings []models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(listings, f.Indent)
	if err != nil {
		return fmt.Errorf("failed to encode listings: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hackathons-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
