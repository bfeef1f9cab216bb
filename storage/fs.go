package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nijaru/yt-digest/errors"
)

// FSStore keeps artifacts as files under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	const op = "FSStore.New"

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Internal(op, err, "failed to create storage directory")
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errors.InvalidInput("FSStore.path", nil, "invalid artifact key: "+key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes through a temp file and rename so readers never see a
// partial artifact.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	const op = "FSStore.Put"

	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Internal(op, err, "failed to create artifact directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Internal(op, err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Internal(op, err, "failed to write artifact")
	}
	if err := tmp.Close(); err != nil {
		return errors.Internal(op, err, "failed to close artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Internal(op, err, "failed to move artifact into place")
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "FSStore.Get"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFound(op, err, "artifact not found: "+key)
	}
	if err != nil {
		return nil, errors.Internal(op, err, "failed to read artifact")
	}
	return data, nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	const op = "FSStore.Exists"

	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal(op, err, "failed to stat artifact")
	}
	return !info.IsDir(), nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	const op = "FSStore.List"

	// Walk only the directory the prefix names; "jobs/j1/sum" starts at
	// jobs/j1.
	start := s.root
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		dir, err := s.path(prefix[:i])
		if err != nil {
			return nil, err
		}
		start = dir
	}

	var keys []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == start && os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Internal(op, err, "failed to list artifacts")
	}

	sort.Strings(keys)
	return keys, nil
}
