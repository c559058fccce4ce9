// Package persist writes an identity mapping to a JSON file and reads it back.
package persist

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/Sternrassler/inspire-names/pkg/mapping"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	// LockSuffix is appended to the destination path to form the lock file.
	LockSuffix = ".lock"
)

var writeBytes = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "inspire_write_bytes",
	Help: "Size in bytes of the last written mapping file",
})

// ErrLocked is returned when another writer holds the destination lock.
var ErrLocked = errors.New("destination is locked by another writer")

// Write serializes m as a single JSON object at dst.
// Missing parent directories are created first. The file is truncated and
// rewritten, so writing the same mapping twice yields identical content.
// A failed write leaves whatever was written so far in place.
//
// Writers serialize on an advisory lock file, dst+LockSuffix. The lock file
// is left next to dst after the write: removing it once unlocked would let a
// writer that already opened it lock a file no other writer can see.
func Write(m mapping.IdentityMapping, dst string) error {
	return WriteContext(context.Background(), m, dst)
}

// WriteContext is Write with log lines tagged from ctx (see
// logging.ContextWithRun). The write itself is not cancelled by ctx.
func WriteContext(ctx context.Context, m mapping.IdentityMapping, dst string) error {
	logger := logging.FromContext(ctx, "writer")

	if dir := filepath.Dir(dst); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return errors.Wrapf(err, "could not create directory %s", dir)
		}
	}

	lock := flock.New(dst + LockSuffix)
	ok, err := lock.TryLock()
	if err != nil {
		return errors.Wrapf(err, "could not lock %s", dst)
	}
	if !ok {
		return errors.Wrap(ErrLocked, dst)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn().Err(err).Str("path", dst).Msg("Failed to release write lock")
		}
	}()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", dst)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(m); err != nil {
		return errors.Wrapf(err, "could not encode mapping to %s", dst)
	}

	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "could not sync file %s", dst)
	}

	if info, err := f.Stat(); err == nil {
		writeBytes.Set(float64(info.Size()))
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", dst)
	}

	logger.Info().
		Str("path", dst).
		Int("entries", len(m)).
		Msg("Identity mapping written")

	return nil
}

// Read loads a mapping previously written by Write.
func Read(src string) (mapping.IdentityMapping, error) {
	b, err := os.ReadFile(src)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", src)
	}

	m := mapping.IdentityMapping{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal %s", src)
	}

	return m, nil
}
