// Package project holds the narrative project record: the metadata and
// derived artifacts spec §3 treats as an opaque ProjectState passed by
// reference into the orchestrator.
package project

import (
	"encoding/json"
	"time"

	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
)

// Project is narrative metadata plus the derived artifacts an expansion
// cycle reads and writes: outline text, a characters JSON blob, a
// chapter map, and an append-only event log.
type Project struct {
	ID             string
	Genre          string
	Setting        string
	Style          string
	Keywords       []string
	Audience       string
	TargetChapters int
	OutlineText    string
	CharactersJSON string
	ChapterMapJSON string
	EventLog       []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func New(id, genre, setting, style string, keywords []string, audience string, targetChapters int) (*Project, error) {
	p := &Project{
		ID:             id,
		Genre:          genre,
		Setting:        setting,
		Style:          style,
		Keywords:       keywords,
		Audience:       audience,
		TargetChapters: targetChapters,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) Validate() error {
	if p.ID == "" {
		return ragerrors.NewValidation("id", "project id is required")
	}
	if p.Genre == "" {
		return ragerrors.NewValidation("genre", "project genre is required")
	}
	if p.TargetChapters < 0 {
		return ragerrors.NewValidation("target_chapters", "target chapter count cannot be negative")
	}
	return nil
}

// CharacterNames extracts the name list from the characters JSON blob
// without exposing its structure to the core. The blob is expected to
// be a JSON array of objects each carrying a "name" field; any other
// shape yields an empty list rather than an error, since this accessor
// is advisory (used by the critic's character-presence check).
func (p *Project) CharacterNames() []string {
	if p.CharactersJSON == "" {
		return nil
	}

	var entries []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(p.CharactersJSON), &entries); err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names
}

// AppendEvent records a line in the project's append-only event log.
func (p *Project) AppendEvent(line string) {
	p.EventLog = append(p.EventLog, line)
	p.UpdatedAt = time.Now()
}

// SourceDocument is an append-only input record: re-issuing a document
// of the same logical identity produces a new row, superseded chunks are
// replaced by source_id equality at the chunk-store layer, not here.
type SourceDocument struct {
	ID        string
	ProjectID string
	Type      string
	ChapterNo *int
	Title     string
	Text      string
	CreatedAt time.Time
}

// Chapter is the canonical draft text for a chapter number within a
// project, the thing the orchestrator writes and re-writes as it
// expands and revises.
type Chapter struct {
	ProjectID string
	Number    int
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
