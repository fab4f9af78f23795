package rag

import "testing"

func TestNewChunkBuildsMetadata(t *testing.T) {
	n := 3
	c := NewChunk("p1", TypeChapter, "doc-1", &n, "some chapter text", "some chapter...")
	if c.Metadata["project_id"] != "p1" {
		t.Fatalf("expected project_id in metadata")
	}
	if c.Metadata["chapter_no"] != "3" {
		t.Fatalf("expected chapter_no 3 in metadata, got %q", c.Metadata["chapter_no"])
	}
	if c.ID == "" {
		t.Fatalf("expected a generated id")
	}
}

func TestChunkValidateRequiresChapterNoForChapterType(t *testing.T) {
	c := NewChunk("p1", TypeChapter, "doc-1", nil, "text", "text")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for chapter chunk without chapter_no")
	}
}

func TestChunkValidateRejectsEmptyText(t *testing.T) {
	c := NewChunk("p1", TypeWorld, "doc-1", nil, "", "")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for empty text")
	}
}

func TestChunkValidateAcceptsWellFormedChunk(t *testing.T) {
	c := NewChunk("p1", TypeWorld, "doc-1", nil, "some world text", "some world...")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
