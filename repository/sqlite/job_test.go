package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nijaru/yt-digest/repository"
	"github.com/nijaru/yt-digest/repository/repotest"
)

func TestRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.JobRepository {
		repo, err := Open(filepath.Join(t.TempDir(), "jobs.db"), DefaultDBConfig())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestIsLockError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: busy"), true},
		{errors.New("no such table"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := isLockError(tt.err); got != tt.want {
			t.Errorf("isLockError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
