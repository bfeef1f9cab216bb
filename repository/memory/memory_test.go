package memory

import (
	"testing"

	"github.com/nijaru/yt-digest/repository"
	"github.com/nijaru/yt-digest/repository/repotest"
)

func TestRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.JobRepository {
		return New()
	})
}
