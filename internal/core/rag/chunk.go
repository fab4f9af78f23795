package rag

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
)

// DocType enumerates the source document / chunk kinds the retrieval
// engine knows about.
type DocType string

const (
	TypeStyleGuide      DocType = "style_guide"
	TypeWorld           DocType = "world"
	TypeOutline         DocType = "outline"
	TypeCharacters      DocType = "characters"
	TypeChapter         DocType = "chapter"
	TypeChapterSummary  DocType = "chapter_summary"
	TypeFacts           DocType = "facts"
	TypeForeshadowing   DocType = "foreshadowing"
)

// AllTypes is the full set of retrievable chunk types, in the order the
// context builder groups them. The context builder has no world section,
// so world chunks are retrievable but not rendered into its output.
var AllTypes = []DocType{
	TypeStyleGuide,
	TypeWorld,
	TypeOutline,
	TypeCharacters,
	TypeFacts,
	TypeForeshadowing,
	TypeChapterSummary,
	TypeChapter,
}

// Chunk is the central retrievable, indexed unit of text.
type Chunk struct {
	ID         string
	ProjectID  string
	Type       DocType
	SourceID   string
	ChapterNo  *int
	Characters []string
	Locations  []string
	POV        string
	Text       string
	Snippet    string
	Metadata   map[string]string
	CreatedAt  time.Time
	Embedding  []float32
}

// NewChunk constructs a Chunk with a fresh identity and facet metadata
// mirrored into the Metadata map, matching the facet/metadata duality of
// the source document schema.
func NewChunk(projectID string, docType DocType, sourceID string, chapterNo *int, text, snippetText string) *Chunk {
	c := &Chunk{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      docType,
		SourceID:  sourceID,
		ChapterNo: chapterNo,
		Text:      text,
		Snippet:   snippetText,
		CreatedAt: time.Now(),
	}
	c.Metadata = c.buildMetadata()
	return c
}

func (c *Chunk) buildMetadata() map[string]string {
	m := map[string]string{
		"project_id": c.ProjectID,
		"type":       string(c.Type),
		"source_id":  c.SourceID,
		"chunk_id":   c.ID,
		"created_at": c.CreatedAt.Format(time.RFC3339Nano),
	}
	if c.ChapterNo != nil {
		m["chapter_no"] = strconv.Itoa(*c.ChapterNo)
	}
	if len(c.Characters) > 0 {
		m["characters"] = strings.Join(c.Characters, ",")
	}
	if len(c.Locations) > 0 {
		m["locations"] = strings.Join(c.Locations, ",")
	}
	if c.POV != "" {
		m["pov"] = c.POV
	}
	return m
}

// Validate enforces invariant 2 (chapter chunks carry a chapter number)
// and invariant 3 (non-empty tokenisable text).
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return ragerrors.NewValidation("text", "chunk text must not be empty")
	}
	if c.Type == TypeChapter && c.ChapterNo == nil {
		return ragerrors.NewValidation("chapter_no", "chapter chunks must carry a chapter number")
	}
	if c.ProjectID == "" {
		return ragerrors.NewValidation("project_id", "chunk must belong to a project")
	}
	return nil
}
