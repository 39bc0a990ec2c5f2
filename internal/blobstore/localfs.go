package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/fileutil"
	"scribe/internal/textutil"
)

const (
	metaDirName    = ".scribe-meta"
	lockRetryDelay = 25 * time.Millisecond
)

// Local stores blobs as files beneath a root directory. A folder is a
// sub-directory and a ref is the slash-separated path relative to root.
// Metadata lives in sidecar JSON files guarded by per-blob file locks.
type Local struct {
	root string
}

// OpenLocal prepares root for use as a blob store.
func OpenLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blobstore: local root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, metaDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the directory backing the store.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(ref string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(ref))
	if cleaned == "." || cleaned == "" || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if cleaned == metaDirName || strings.HasPrefix(cleaned, metaDirName+"/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

func (l *Local) blobPath(ref string) (string, error) {
	full, err := l.resolve(ref)
	if err != nil {
		return "", err
	}
	if !fileutil.Exists(full) {
		return "", notFound(ref)
	}
	return full, nil
}

func (l *Local) metaPath(ref string) string {
	return filepath.Join(l.root, metaDirName, url.PathEscape(path.Clean(ref))+".json")
}

func (l *Local) List(_ context.Context, folder string) ([]string, error) {
	folder = strings.Trim(folder, "/")
	dir := l.root
	if folder != "" {
		resolved, err := l.resolve(folder)
		if err != nil {
			return nil, err
		}
		dir = resolved
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	refs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		refs = append(refs, path.Join(folder, entry.Name()))
	}
	slices.Sort(refs)
	return refs, nil
}

func (l *Local) GetMetadata(ctx context.Context, ref string) (string, bool, error) {
	if _, err := l.blobPath(ref); err != nil {
		return "", false, err
	}
	metaPath := l.metaPath(ref)
	lock := flock.New(metaPath + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", false, fmt.Errorf("lock metadata: %w", err)
	}
	if locked {
		defer func() { _ = lock.Unlock() }()
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read metadata: %w", err)
	}
	return string(data), true, nil
}

func (l *Local) SetMetadata(ctx context.Context, ref, value string) error {
	if _, err := l.blobPath(ref); err != nil {
		return err
	}
	metaPath := l.metaPath(ref)
	lock := flock.New(metaPath + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock metadata: %w", err)
	}
	if locked {
		defer func() { _ = lock.Unlock() }()
	}
	if err := fileutil.WriteFileAtomic(metaPath, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (l *Local) Upload(_ context.Context, folder, localPath string) (string, error) {
	folder = strings.Trim(folder, "/")
	name := textutil.SanitizeFileName(filepath.Base(localPath))
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidRef)
	}
	ref, target, err := l.freeName(folder, name)
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyFileVerified(localPath, target); err != nil {
		return "", fmt.Errorf("store %s: %w", ref, err)
	}
	return ref, nil
}

// freeName picks folder/name, or folder/name-N.ext when name is taken.
func (l *Local) freeName(folder, name string) (string, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		ref := path.Join(folder, candidate)
		target, err := l.resolve(ref)
		if err != nil {
			return "", "", err
		}
		if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
			return ref, target, nil
		}
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
}

func (l *Local) Download(_ context.Context, ref, localDir string) (string, error) {
	source, err := l.blobPath(ref)
	if err != nil {
		return "", err
	}
	target := filepath.Join(localDir, filepath.Base(source))
	if err := fileutil.CopyFileVerified(source, target); err != nil {
		return "", fmt.Errorf("download %s: %w", ref, err)
	}
	return target, nil
}

func (l *Local) Delete(_ context.Context, ref string) error {
	source, err := l.blobPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	metaPath := l.metaPath(ref)
	for _, sidecar := range []string{metaPath, metaPath + ".lock"} {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete metadata for %s: %w", ref, err)
		}
	}
	return nil
}

func (l *Local) Name(_ context.Context, ref string) (string, error) {
	source, err := l.blobPath(ref)
	if err != nil {
		return "", err
	}
	return filepath.Base(source), nil
}

func (l *Local) Close() error { return nil }
