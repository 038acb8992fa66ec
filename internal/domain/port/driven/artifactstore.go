package driven

import (
	"context"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

// ArtifactStore defines the driven port for workflow artifact metadata and
// the best-effort flag upload the idempotency guard relies on.
type ArtifactStore interface {
	// ListRunArtifacts lists artifacts attached to one workflow run.
	ListRunArtifacts(ctx context.Context, runID int64) ([]model.Artifact, error)
	// ListRepositoryArtifacts lists artifacts across all workflow runs of
	// the repository. Used as a fallback for retry attempts whose own
	// artifact list is empty.
	ListRepositoryArtifacts(ctx context.Context) ([]model.Artifact, error)
	// Upload publishes the file at path as an artifact with the given name
	// and retention in days.
	Upload(ctx context.Context, name, path string, retentionDays int) error
}
