package handlers

import (
	"context"
	"strings"

	"github.com/story-engine/ragcore/internal/core/rag"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/events"
)

const (
	outlineSourceID    = "outline"
	charactersSourceID = "characters"

	outlineDocType    = rag.TypeOutline
	charactersDocType = rag.TypeCharacters
)

const (
	indexMaxChars = 1400
	indexOverlap  = 0.2
	indexSnippet  = 240
)

// indexSingleDoc chunks and replaces a project-level document (outline,
// characters) under its fixed source_id, the same replace-by-source
// contract the orchestrator uses for chapter text.
func indexSingleDoc(ctx context.Context, chunks chunkstore.ChunkStore, projectID string, docType rag.DocType, sourceID, text string, sink events.Sink) error {
	if strings.TrimSpace(text) == "" {
		return chunks.DeleteBySource(ctx, projectID, docType, sourceID)
	}

	segments := rag.ChunkText(text, indexMaxChars, indexOverlap, indexSnippet)
	newChunks := make([]*rag.Chunk, 0, len(segments))
	for _, seg := range segments {
		newChunks = append(newChunks, rag.NewChunk(projectID, docType, sourceID, nil, seg.Text, seg.Snippet))
	}

	if err := chunks.ReplaceBySource(ctx, projectID, docType, sourceID, newChunks); err != nil {
		return err
	}
	if sink != nil {
		sink.Emit(events.Event{Stage: "index." + string(docType), Message: "indexed " + sourceID, Fields: map[string]any{"chunks": len(newChunks)}})
	}
	return nil
}
