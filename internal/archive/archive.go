// Package archive keeps a preset store inside a zip file. The store entry
// is extracted to a temporary file, worked on, and packed back; the zip on
// disk is only replaced once the new one is complete.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultEntry is the name of the store file inside the archive.
const DefaultEntry = "Presets.hfdb"

// IOError reports a failure to read or rewrite the archive.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Archive is a zip file holding one store entry.
type Archive struct {
	Path        string
	Entry       string
	LockTimeout time.Duration
	log         *zap.Logger
}

// New returns an Archive for path. An empty entry means DefaultEntry.
func New(path, entry string, lockTimeout time.Duration, log *zap.Logger) *Archive {
	if entry == "" {
		entry = DefaultEntry
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Archive{Path: path, Entry: entry, LockTimeout: lockTimeout, log: log}
}

func (a *Archive) fail(op string, err error, msg string) error {
	return &IOError{Op: op, Path: a.Path, Err: errors.Wrap(err, msg)}
}

// lock takes the advisory lock next to the archive. Writers are exclusive,
// readers share.
func (a *Archive) lock(ctx context.Context, exclusive bool) (*flock.Flock, error) {
	fl := flock.New(a.Path + ".lock")
	if a.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.LockTimeout)
		defer cancel()
	}
	try := fl.TryRLockContext
	if exclusive {
		try = fl.TryLockContext
	}
	ok, err := try(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, a.fail("lock", err, "acquiring lock")
	}
	if !ok {
		return nil, a.fail("lock", errors.New("lock busy"), "acquiring lock")
	}
	return fl, nil
}

func (a *Archive) tempName(suffix string) string {
	dir, base := filepath.Split(a.Path)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", base, uuid.NewString(), suffix))
}

// Create writes a new archive whose entry is produced by seed, which
// receives the path of an empty temporary file. It refuses to overwrite
// an existing archive.
func (a *Archive) Create(ctx context.Context, seed func(path string) error) error {
	if _, err := os.Stat(a.Path); err == nil {
		return a.fail("create", os.ErrExist, "archive already exists")
	}
	if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
		return a.fail("create", err, "creating directory")
	}
	fl, err := a.lock(ctx, true)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	tmp := a.tempName(".tmp")
	defer os.Remove(tmp)
	if err := seed(tmp); err != nil {
		return err
	}
	if err := a.pack(nil, tmp); err != nil {
		return err
	}
	a.log.Info("archive created", zap.String("path", a.Path), zap.String("entry", a.Entry))
	return nil
}

// Mutate extracts the store entry, runs fn on the extracted file and packs
// the result back. If fn or packing fails the archive is left untouched.
// The temporary file is always removed.
func (a *Archive) Mutate(ctx context.Context, fn func(path string) error) error {
	fl, err := a.lock(ctx, true)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return a.fail("open", err, "opening archive")
	}
	defer zr.Close()

	tmp := a.tempName(".tmp")
	defer os.Remove(tmp)
	if err := a.extract(&zr.Reader, tmp); err != nil {
		return err
	}
	if err := fn(tmp); err != nil {
		return err
	}
	if err := a.pack(&zr.Reader, tmp); err != nil {
		return err
	}
	a.log.Debug("archive updated", zap.String("path", a.Path))
	return nil
}

// Read extracts the store entry and runs fn on a private copy. Changes fn
// makes are discarded.
func (a *Archive) Read(ctx context.Context, fn func(path string) error) error {
	fl, err := a.lock(ctx, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return a.fail("open", err, "opening archive")
	}
	defer zr.Close()

	tmp := a.tempName(".tmp")
	defer os.Remove(tmp)
	if err := a.extract(&zr.Reader, tmp); err != nil {
		return err
	}
	return fn(tmp)
}

// extract copies the store entry to dst. A missing entry yields an empty
// file so that a fresh store is created in its place.
func (a *Archive) extract(zr *zip.Reader, dst string) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return a.fail("extract", err, "creating temp file")
	}
	defer out.Close()
	for _, f := range zr.File {
		if f.Name != a.Entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return a.fail("extract", err, "opening entry "+a.Entry)
		}
		defer rc.Close()
		if _, err := io.Copy(out, rc); err != nil {
			return a.fail("extract", err, "reading entry "+a.Entry)
		}
		break
	}
	return errors.WithMessage(out.Close(), "closing temp file")
}

// pack writes a new zip holding src as the store entry plus every other
// entry of old, then renames it over the archive.
func (a *Archive) pack(old *zip.Reader, src string) error {
	tmpZip := a.tempName(".zip.tmp")
	defer os.Remove(tmpZip)

	out, err := os.OpenFile(tmpZip, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return a.fail("pack", err, "creating temp archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	if old != nil {
		for _, f := range old.File {
			if f.Name == a.Entry {
				continue
			}
			if err := zw.Copy(f); err != nil {
				return a.fail("pack", err, "copying entry "+f.Name)
			}
		}
	}
	if err := a.writeEntry(zw, src); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return a.fail("pack", err, "finishing archive")
	}
	if err := out.Sync(); err != nil {
		return a.fail("pack", err, "syncing archive")
	}
	if err := out.Close(); err != nil {
		return a.fail("pack", err, "closing archive")
	}
	if err := os.Rename(tmpZip, a.Path); err != nil {
		return a.fail("replace", err, "replacing archive")
	}
	return nil
}

func (a *Archive) writeEntry(zw *zip.Writer, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return a.fail("pack", err, "opening store file")
	}
	defer in.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     a.Entry,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return a.fail("pack", err, "adding entry "+a.Entry)
	}
	if _, err := io.Copy(w, in); err != nil {
		return a.fail("pack", err, "writing entry "+a.Entry)
	}
	return nil
}
