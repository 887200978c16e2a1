package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// FileProvider serves snapshots from a fixture file.
type FileProvider struct {
	path string
	now  func() time.Time
}

// NewFileProvider creates a FileProvider for path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, now: time.Now}
}

// Snapshot implements allocator.Provider.
func (p *FileProvider) Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", hardware.ErrTransportFailure, err)
	}
	if !dir.IsValid() {
		return nil, fmt.Errorf("%w: %q", hardware.ErrInvalidDirection, dir)
	}

	f, err := LoadFixture(p.path)
	if err != nil {
		switch {
		case errors.Is(err, hardware.ErrMalformedSnapshot):
			return nil, err
		case errors.Is(err, ErrUnsupportedFormat):
			return nil, fmt.Errorf("%w: %w", hardware.ErrMalformedSnapshot, err)
		default:
			return nil, fmt.Errorf("%w: %w", hardware.ErrTransportFailure, err)
		}
	}

	c, ok := f.Central(centralID)
	if !ok {
		return nil, fmt.Errorf("%w: central %s", hardware.ErrNotFound, centralID)
	}
	return c.Snapshot(dir, p.now()), nil
}
