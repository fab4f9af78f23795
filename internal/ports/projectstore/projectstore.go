package projectstore

import (
	"context"

	"github.com/story-engine/ragcore/internal/core/project"
)

// ProjectStore owns CRUD for the narrative project record and its
// chapter rows. It has no retrieval logic: that lives in the retriever
// and chunk store, which index chapter, outline and characters text
// separately.
type ProjectStore interface {
	Create(ctx context.Context, p *project.Project) error
	GetByID(ctx context.Context, id string) (*project.Project, error)
	Update(ctx context.Context, p *project.Project) error

	UpsertChapter(ctx context.Context, ch *project.Chapter) error
	GetChapter(ctx context.Context, projectID string, number int) (*project.Chapter, error)
}
