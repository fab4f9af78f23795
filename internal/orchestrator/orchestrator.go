// Package orchestrator implements the expansion pipeline (§4.10): the
// single entrypoint that turns an instruction into a drafted chapter,
// writes it back, extracts memory, and critiques the result.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/story-engine/ragcore/internal/core/project"
	"github.com/story-engine/ragcore/internal/core/rag"
	"github.com/story-engine/ragcore/internal/critic"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/completion"
	"github.com/story-engine/ragcore/internal/ports/events"
	"github.com/story-engine/ragcore/internal/ports/projectstore"
	"github.com/story-engine/ragcore/internal/retrieval"
	"github.com/story-engine/ragcore/internal/writeback"
)

const (
	retrieveTopK    = 18
	defaultMaxChars = 1400
	defaultOverlap  = 0.2
	defaultSnippet  = 240
)

// Orchestrator wires the retriever, writer, writeback extractor, and
// critic into the fixed 9-step expansion sequence. Every dependency is
// an explicit field set by New, mirroring the Design Notes' rejection of
// package-level singletons in favour of a CoreBuilder.
type Orchestrator struct {
	projects   projectstore.ProjectStore
	chunks     chunkstore.ChunkStore
	retriever  *retrieval.Retriever
	writer     completion.Completion
	extractor  *writeback.Extractor
	critic     *critic.Critic
	autoRevise bool
	log        logger.Logger
}

func New(
	projects projectstore.ProjectStore,
	chunks chunkstore.ChunkStore,
	retriever *retrieval.Retriever,
	writer completion.Completion,
	extractor *writeback.Extractor,
	criticEngine *critic.Critic,
	autoRevise bool,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		projects:   projects,
		chunks:     chunks,
		retriever:  retriever,
		writer:     writer,
		extractor:  extractor,
		critic:     criticEngine,
		autoRevise: autoRevise,
		log:        log,
	}
}

// ExpandRequest is the expand(project, chapter_no=N, instruction,
// target_words) call of §4.10.
type ExpandRequest struct {
	ProjectID   string
	ChapterNo   int
	Instruction string
	TargetWords int
}

// ExpandResult is the fixed return shape of §4.10 step 9.
type ExpandResult struct {
	ChapterNumber           int
	Text                    string
	ContextUsed             string
	RetrievedContextSources []string
	CriticIssues            []critic.Issue
	Revised                 bool
}

// Expand runs the full 9-step sequence, emitting a structured event at
// every boundary into sink.
func (o *Orchestrator) Expand(ctx context.Context, req ExpandRequest, sink events.Sink) (ExpandResult, error) {
	emit(sink, "expand.start", "expansion started", map[string]any{
		"project_id": req.ProjectID,
		"chapter_no": req.ChapterNo,
	})

	proj, err := o.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return ExpandResult{}, err
	}

	// Step 1: build the query.
	query := strings.TrimSpace(fmt.Sprintf("Chapter %d expansion: %s", req.ChapterNo, req.Instruction))

	// Step 2: retrieve, causally bounded to chapters strictly before N.
	chapterNo := req.ChapterNo
	filters := retrieval.Filters{
		Types:             rag.AllTypes,
		ChapterNo:         &chapterNo,
		ChapterOnlyBefore: true,
		TopKVector:        retrieveTopK,
		TopKKeyword:       retrieveTopK,
	}
	retrieved, err := o.retriever.Retrieve(ctx, req.ProjectID, query, filters, retrieveTopK)
	if err != nil {
		return ExpandResult{}, err
	}
	emit(sink, "retrieve.done", "retrieval completed", map[string]any{"hits": len(retrieved)})

	// Step 3: assemble context + instruction.
	contextUsed := retrieval.BuildContext(retrieved, req.Instruction)
	sources := sourceIDs(retrieved)

	// Step 4: call the writer.
	draft, err := o.writer.Complete(ctx, writerSystemPrompt, contextUsed, 0.7)
	if err != nil {
		return ExpandResult{}, err
	}
	emit(sink, "write.done", "draft produced", map[string]any{"chars": len(draft)})

	// Step 5: upsert the chapter row, index type=chapter (replacing prior
	// chunks of this source_id).
	sourceID := chapterSourceID(req.ProjectID, req.ChapterNo)
	if err := o.upsertAndIndexChapter(ctx, proj.ID, req.ChapterNo, sourceID, draft); err != nil {
		return ExpandResult{}, err
	}
	emit(sink, "index.chapter", "chapter indexed", map[string]any{"source_id": sourceID})

	// Step 6: extract summary/facts/foreshadowing, index each as its own
	// type.
	extraction, err := o.extractor.Extract(ctx, req.ChapterNo, draft)
	if err != nil {
		return ExpandResult{}, err
	}
	if err := o.indexMemory(ctx, proj.ID, req.ChapterNo, extraction); err != nil {
		return ExpandResult{}, err
	}
	emit(sink, "extract.done", "memory extracted", nil)

	// Step 7: critique with constraints = retrieved ∩
	// {characters, world, facts, outline}.
	constraintText := constraintContext(retrieved)
	review, err := o.critic.Review(ctx, proj.CharacterNames(), constraintText, draft, o.autoRevise)
	if err != nil {
		return ExpandResult{}, err
	}
	emit(sink, "critic.done", "critic review completed", map[string]any{"issues": len(review.Issues)})

	// Step 8: apply a revision if one was returned and auto-revise is on.
	revised := false
	finalText := draft
	if o.autoRevise && strings.TrimSpace(review.RevisedText) != "" {
		finalText = review.RevisedText
		if err := o.upsertAndIndexChapter(ctx, proj.ID, req.ChapterNo, sourceID, finalText); err != nil {
			return ExpandResult{}, err
		}
		revised = true
		emit(sink, "revise.done", "chapter revised and re-indexed", nil)
	}

	emit(sink, "expand.done", "expansion completed", map[string]any{"revised": revised})

	return ExpandResult{
		ChapterNumber:           req.ChapterNo,
		Text:                    finalText,
		ContextUsed:             contextUsed,
		RetrievedContextSources: sources,
		CriticIssues:            review.Issues,
		Revised:                 revised,
	}, nil
}

func (o *Orchestrator) upsertAndIndexChapter(ctx context.Context, projectID string, chapterNo int, sourceID, text string) error {
	if err := o.projects.UpsertChapter(ctx, &project.Chapter{ProjectID: projectID, Number: chapterNo, Text: text}); err != nil {
		return err
	}

	segments := rag.ChunkText(text, defaultMaxChars, defaultOverlap, defaultSnippet)
	chunks := make([]*rag.Chunk, 0, len(segments))
	cn := chapterNo
	for _, seg := range segments {
		chunks = append(chunks, rag.NewChunk(projectID, rag.TypeChapter, sourceID, &cn, seg.Text, seg.Snippet))
	}
	return o.chunks.ReplaceBySource(ctx, projectID, rag.TypeChapter, sourceID, chunks)
}

func (o *Orchestrator) indexMemory(ctx context.Context, projectID string, chapterNo int, extraction writeback.Extraction) error {
	cn := chapterNo

	summaryID := fmt.Sprintf("chapter-%d-summary", chapterNo)
	summaryChunks := chunksFromText(projectID, rag.TypeChapterSummary, summaryID, &cn, extraction.ChapterSummary)
	if err := o.chunks.ReplaceBySource(ctx, projectID, rag.TypeChapterSummary, summaryID, summaryChunks); err != nil {
		return err
	}

	factsID := fmt.Sprintf("chapter-%d-facts", chapterNo)
	factsChunks := chunksFromText(projectID, rag.TypeFacts, factsID, &cn, extraction.FactsJSON)
	if err := o.chunks.ReplaceBySource(ctx, projectID, rag.TypeFacts, factsID, factsChunks); err != nil {
		return err
	}

	foreshadowingID := fmt.Sprintf("chapter-%d-foreshadowing", chapterNo)
	foreshadowingChunks := chunksFromText(projectID, rag.TypeForeshadowing, foreshadowingID, &cn, extraction.ForeshadowingJSON)
	return o.chunks.ReplaceBySource(ctx, projectID, rag.TypeForeshadowing, foreshadowingID, foreshadowingChunks)
}

func chunksFromText(projectID string, docType rag.DocType, sourceID string, chapterNo *int, text string) []*rag.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	segments := rag.ChunkText(text, defaultMaxChars, defaultOverlap, defaultSnippet)
	chunks := make([]*rag.Chunk, 0, len(segments))
	for _, seg := range segments {
		chunks = append(chunks, rag.NewChunk(projectID, docType, sourceID, chapterNo, seg.Text, seg.Snippet))
	}
	return chunks
}

func chapterSourceID(projectID string, chapterNo int) string {
	return "chapter-" + strconv.Itoa(chapterNo)
}

func sourceIDs(results []retrieval.Result) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Chunk.ID)
	}
	return ids
}

// constraintContext keeps only the constraint-relevant results
// (characters, world, facts, outline) for the critic, narrower than the
// full assembled context the writer saw. It renders them with
// BuildContext, which has no world section, so world results do not
// appear in the returned text.
func constraintContext(results []retrieval.Result) string {
	allowed := map[rag.DocType]bool{
		rag.TypeCharacters: true,
		rag.TypeWorld:      true,
		rag.TypeFacts:      true,
		rag.TypeOutline:    true,
	}
	filtered := make([]retrieval.Result, 0, len(results))
	for _, r := range results {
		if allowed[r.Chunk.Type] {
			filtered = append(filtered, r)
		}
	}
	return retrieval.BuildContext(filtered, "")
}

func emit(sink events.Sink, stage, message string, fields map[string]any) {
	if sink == nil {
		return
	}
	sink.Emit(events.Event{Stage: stage, Message: message, Fields: fields})
}

const writerSystemPrompt = "You are a long-form fiction writer. Continue the chapter using only the supplied context and instruction; do not contradict established facts, characters, or outline beats."
