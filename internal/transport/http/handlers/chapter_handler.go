package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/story-engine/ragcore/internal/orchestrator"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/events"
	"github.com/story-engine/ragcore/internal/ports/projectstore"
)

// ChapterHandler implements the single expansion endpoint, the
// orchestrator's only HTTP-facing entrypoint.
type ChapterHandler struct {
	projects     projectstore.ProjectStore
	orchestrator *orchestrator.Orchestrator
	log          logger.Logger
}

func NewChapterHandler(projects projectstore.ProjectStore, o *orchestrator.Orchestrator, log logger.Logger) *ChapterHandler {
	return &ChapterHandler{projects: projects, orchestrator: o, log: log}
}

type expandRequest struct {
	Instruction string `json:"instruction"`
	TargetWords int    `json:"target_words"`
}

type expandResponse struct {
	ChapterNumber           int         `json:"chapter_number"`
	Text                    string      `json:"text"`
	ContextUsed             string      `json:"context_used"`
	RetrievedContextSources []string    `json:"retrieved_context_sources"`
	CriticIssues            []issueView `json:"critic_issues"`
	Revised                 bool        `json:"revised"`
}

type issueView struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Evidence string `json:"evidence"`
}

// Expand handles POST /projects/{id}/chapters/{n}/expand.
func (h *ChapterHandler) Expand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chapterNo, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || chapterNo < 1 || chapterNo > 200 {
		writeValidationError(w, "n", "chapter number must be within [1, 200]")
		return
	}

	proj, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(proj.OutlineText) == "" {
		writeError(w, ragerrors.NewPrecondition("an outline must be set before expanding a chapter"))
		return
	}
	if len(proj.CharacterNames()) == 0 {
		writeError(w, ragerrors.NewPrecondition("characters must be set before expanding a chapter"))
		return
	}

	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "body", "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeValidationError(w, "instruction", "instruction is required")
		return
	}
	if req.TargetWords < 200 || req.TargetWords > 20000 {
		writeValidationError(w, "target_words", "target_words must be within [200, 20000]")
		return
	}

	sink := events.NewMemorySink()
	result, err := h.orchestrator.Expand(r.Context(), orchestrator.ExpandRequest{
		ProjectID:   id,
		ChapterNo:   chapterNo,
		Instruction: req.Instruction,
		TargetWords: req.TargetWords,
	}, sink)
	if err != nil {
		writeError(w, err)
		return
	}

	issues := make([]issueView, 0, len(result.CriticIssues))
	for _, iss := range result.CriticIssues {
		issues = append(issues, issueView{Type: iss.Type, Severity: iss.Severity, Evidence: iss.Evidence})
	}

	writeData(w, http.StatusOK, expandResponse{
		ChapterNumber:           result.ChapterNumber,
		Text:                    result.Text,
		ContextUsed:             result.ContextUsed,
		RetrievedContextSources: result.RetrievedContextSources,
		CriticIssues:            issues,
		Revised:                 result.Revised,
	}, sink.Lines())
}
