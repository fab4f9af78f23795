package sqlite

import (
	"context"
	"testing"

	"github.com/story-engine/ragcore/internal/core/project"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
)

func TestProjectStoreCreateAndGetByID(t *testing.T) {
	db := openTestDB(t)
	store := NewProjectStore(db)
	ctx := context.Background()

	p, err := project.New("p1", "fantasy", "a floating city", "terse and moody", []string{"airships", "rebellion"}, "ya", 12)
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Genre != "fantasy" || got.Audience != "ya" || got.TargetChapters != 12 {
		t.Fatalf("unexpected project fields: %+v", got)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "airships" {
		t.Fatalf("unexpected keywords: %+v", got.Keywords)
	}
}

func TestProjectStoreGetByIDNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewProjectStore(db)
	_, err := store.GetByID(context.Background(), "missing")
	if !ragerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestProjectStoreUpdatePersistsOutlineAndCharacters(t *testing.T) {
	db := openTestDB(t)
	store := NewProjectStore(db)
	ctx := context.Background()

	p, _ := project.New("p1", "fantasy", "a floating city", "terse", nil, "ya", 12)
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	p.OutlineText = "Act I: the city falls."
	p.CharactersJSON = `[{"name":"Elena"},{"name":"Marcus"}]`
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.OutlineText != "Act I: the city falls." {
		t.Fatalf("expected outline to persist, got %q", got.OutlineText)
	}
	names := got.CharacterNames()
	if len(names) != 2 || names[0] != "Elena" || names[1] != "Marcus" {
		t.Fatalf("expected character names from JSON blob, got %+v", names)
	}
}

func TestProjectStoreUpsertChapterInsertsThenReplaces(t *testing.T) {
	db := openTestDB(t)
	store := NewProjectStore(db)
	ctx := context.Background()

	p, _ := project.New("p1", "fantasy", "", "", nil, "", 5)
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	ch := &project.Chapter{ProjectID: "p1", Number: 1, Text: "first draft"}
	if err := store.UpsertChapter(ctx, ch); err != nil {
		t.Fatalf("upsert chapter: %v", err)
	}

	ch.Text = "revised draft"
	if err := store.UpsertChapter(ctx, ch); err != nil {
		t.Fatalf("re-upsert chapter: %v", err)
	}

	got, err := store.GetChapter(ctx, "p1", 1)
	if err != nil {
		t.Fatalf("get chapter: %v", err)
	}
	if got.Text != "revised draft" {
		t.Fatalf("expected revised text to overwrite, got %q", got.Text)
	}
}

func TestProjectStoreGetChapterNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewProjectStore(db)
	_, err := store.GetChapter(context.Background(), "p1", 99)
	if !ragerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
