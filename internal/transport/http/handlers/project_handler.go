// Package handlers implements the thin HTTP surface of spec.md §6: seven
// endpoints wrapping project CRUD, chapter expansion, and the two
// retrieval introspection endpoints, all behind the
// {data, error, agent_logs} envelope.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/story-engine/ragcore/internal/core/project"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/events"
	"github.com/story-engine/ragcore/internal/ports/projectstore"
)

const eventLogTail = 20

// ProjectHandler implements project creation/inspection and the outline
// and characters seeding steps a project must go through before a
// chapter can be expanded.
type ProjectHandler struct {
	projects projectstore.ProjectStore
	chunks   chunkstore.ChunkStore
	log      logger.Logger
}

func NewProjectHandler(projects projectstore.ProjectStore, chunks chunkstore.ChunkStore, log logger.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, chunks: chunks, log: log}
}

type createProjectRequest struct {
	Genre          string   `json:"genre"`
	Setting        string   `json:"setting"`
	Style          string   `json:"style"`
	Keywords       []string `json:"keywords"`
	Audience       string   `json:"audience"`
	TargetChapters int      `json:"target_chapters"`
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "body", "invalid JSON")
		return
	}

	proj, err := project.New(newProjectID(), req.Genre, req.Setting, req.Style, req.Keywords, req.Audience, req.TargetChapters)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.projects.Create(r.Context(), proj); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, projectSnapshot(proj), nil)
}

// Get handles GET /projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	proj, err := h.projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, projectSnapshot(proj), nil)
}

type outlineRequest struct {
	Theme      string `json:"theme"`
	TotalWords int    `json:"total_words"`
}

// SetOutline handles POST /projects/{id}/outline.
func (h *ProjectHandler) SetOutline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	proj, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req outlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "body", "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Theme) == "" {
		writeValidationError(w, "theme", "theme is required")
		return
	}
	if req.TotalWords < 1000 || req.TotalWords > 2000000 {
		writeValidationError(w, "total_words", "total_words must be within [1000, 2000000]")
		return
	}

	proj.OutlineText = req.Theme
	proj.AppendEvent("outline set")
	if err := h.projects.Update(r.Context(), proj); err != nil {
		writeError(w, err)
		return
	}

	sink := events.NewMemorySink()
	if err := indexSingleDoc(r.Context(), h.chunks, proj.ID, outlineDocType, outlineSourceID, proj.OutlineText, sink); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, projectSnapshot(proj), sink.Lines())
}

type charactersRequest struct {
	Constraints string `json:"constraints"`
}

// SetCharacters handles POST /projects/{id}/characters. Requires a
// non-empty outline first (§6).
func (h *ProjectHandler) SetCharacters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	proj, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(proj.OutlineText) == "" {
		writeError(w, ragerrors.NewPrecondition("an outline must be set before characters"))
		return
	}

	var req charactersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "body", "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Constraints) == "" {
		writeValidationError(w, "constraints", "constraints is required")
		return
	}

	proj.CharactersJSON = req.Constraints
	proj.AppendEvent("characters set")
	if err := h.projects.Update(r.Context(), proj); err != nil {
		writeError(w, err)
		return
	}

	sink := events.NewMemorySink()
	if err := indexSingleDoc(r.Context(), h.chunks, proj.ID, charactersDocType, charactersSourceID, proj.CharactersJSON, sink); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, projectSnapshot(proj), sink.Lines())
}

type projectView struct {
	ID             string   `json:"id"`
	Genre          string   `json:"genre"`
	Setting        string   `json:"setting"`
	Style          string   `json:"style"`
	Keywords       []string `json:"keywords"`
	Audience       string   `json:"audience"`
	TargetChapters int      `json:"target_chapters"`
	HasOutline     bool     `json:"has_outline"`
	HasCharacters  bool     `json:"has_characters"`
	EventLogTail   []string `json:"event_log_tail"`
}

func projectSnapshot(p *project.Project) projectView {
	tail := p.EventLog
	if len(tail) > eventLogTail {
		tail = tail[len(tail)-eventLogTail:]
	}
	return projectView{
		ID:             p.ID,
		Genre:          p.Genre,
		Setting:        p.Setting,
		Style:          p.Style,
		Keywords:       p.Keywords,
		Audience:       p.Audience,
		TargetChapters: p.TargetChapters,
		HasOutline:     strings.TrimSpace(p.OutlineText) != "",
		HasCharacters:  len(p.CharacterNames()) > 0,
		EventLogTail:   tail,
	}
}

func atoiOrDefault(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
