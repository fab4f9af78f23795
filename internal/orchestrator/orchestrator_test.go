package orchestrator

import (
	"context"
	"strconv"
	"testing"

	mockcompletion "github.com/story-engine/ragcore/internal/adapters/completion/mock"
	mockembed "github.com/story-engine/ragcore/internal/adapters/embedder/mock"
	mockrerank "github.com/story-engine/ragcore/internal/adapters/reranker/mock"
	"github.com/story-engine/ragcore/internal/adapters/vectorindex/memvector"
	"github.com/story-engine/ragcore/internal/core/project"
	"github.com/story-engine/ragcore/internal/core/rag"
	"github.com/story-engine/ragcore/internal/critic"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/events"
	"github.com/story-engine/ragcore/internal/retrieval"
	"github.com/story-engine/ragcore/internal/writeback"
)

// fakeChunkStore is the same minimal in-memory ChunkStore idiom used by
// the retriever's own tests.
type fakeChunkStore struct {
	chunks map[string]*rag.Chunk
}

func newFakeChunkStore() *fakeChunkStore { return &fakeChunkStore{chunks: map[string]*rag.Chunk{}} }

func (f *fakeChunkStore) ReplaceBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string, newChunks []*rag.Chunk) error {
	for k, c := range f.chunks {
		if c.ProjectID == projectID && c.Type == docType && c.SourceID == sourceID {
			delete(f.chunks, k)
		}
	}
	for _, c := range newChunks {
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeChunkStore) DeleteBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string) error {
	return nil
}

func (f *fakeChunkStore) KeywordSearch(ctx context.Context, projectID, query string, docTypes []rag.DocType, chapterMax *int, topK int) ([]chunkstore.KeywordHit, error) {
	allowed := map[rag.DocType]bool{}
	for _, t := range docTypes {
		allowed[t] = true
	}
	var hits []chunkstore.KeywordHit
	for _, c := range f.chunks {
		if c.ProjectID != projectID {
			continue
		}
		if len(allowed) > 0 && !allowed[c.Type] {
			continue
		}
		if chapterMax != nil && c.Type == rag.TypeChapter && c.ChapterNo != nil && *c.ChapterNo > *chapterMax {
			continue
		}
		hits = append(hits, chunkstore.KeywordHit{Chunk: c, Rank: 0})
		if len(hits) >= topK {
			break
		}
	}
	return hits, nil
}

func (f *fakeChunkStore) GetByID(ctx context.Context, chunkID string) (*rag.Chunk, error) {
	return f.chunks[chunkID], nil
}

func (f *fakeChunkStore) Stats(ctx context.Context, projectID string) (map[rag.DocType]chunkstore.TypeStats, error) {
	return nil, nil
}

// fakeProjectStore is an in-memory ProjectStore for orchestrator tests.
type fakeProjectStore struct {
	projects map[string]*project.Project
	chapters map[string]*project.Chapter
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		projects: map[string]*project.Project{},
		chapters: map[string]*project.Chapter{},
	}
}

func (f *fakeProjectStore) Create(ctx context.Context, p *project.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeProjectStore) GetByID(ctx context.Context, id string) (*project.Project, error) {
	return f.projects[id], nil
}

func (f *fakeProjectStore) Update(ctx context.Context, p *project.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeProjectStore) UpsertChapter(ctx context.Context, ch *project.Chapter) error {
	f.chapters[chapterKey(ch.ProjectID, ch.Number)] = ch
	return nil
}

func (f *fakeProjectStore) GetChapter(ctx context.Context, projectID string, number int) (*project.Chapter, error) {
	return f.chapters[chapterKey(projectID, number)], nil
}

func chapterKey(projectID string, number int) string {
	return projectID + "#" + strconv.Itoa(number)
}

func newTestOrchestrator(t *testing.T, chunks *fakeChunkStore, projects *fakeProjectStore, autoRevise bool) *Orchestrator {
	t.Helper()
	vecIndex := memvector.New(16)
	embedder := mockembed.New("mock-model", 16)
	rr := mockrerank.New()
	retriever := retrieval.New(chunks, vecIndex, embedder, rr, logger.NoOp())
	comp := mockcompletion.New()
	extractor := writeback.New(comp)
	criticEngine := critic.New(critic.ModeRule, comp)
	return New(projects, chunks, retriever, comp, extractor, criticEngine, autoRevise, logger.NoOp())
}

func TestExpandProducesChapterAndIndexesMemory(t *testing.T) {
	chunks := newFakeChunkStore()
	projects := newFakeProjectStore()
	p, err := project.New("p1", "fantasy", "a floating city", "terse", []string{"airships"}, "ya", 10)
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	p.CharactersJSON = `[{"name":"Elena"}]`
	if err := projects.Create(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	o := newTestOrchestrator(t, chunks, projects, false)
	sink := events.NewMemorySink()

	result, err := o.Expand(context.Background(), ExpandRequest{
		ProjectID:   "p1",
		ChapterNo:   1,
		Instruction: "Elena discovers the floating city's secret engine.",
		TargetWords: 500,
	}, sink)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if result.Text == "" {
		t.Fatalf("expected non-empty chapter text")
	}
	if result.ChapterNumber != 1 {
		t.Fatalf("expected chapter number 1, got %d", result.ChapterNumber)
	}

	ch, err := projects.GetChapter(context.Background(), "p1", 1)
	if err != nil || ch == nil {
		t.Fatalf("expected chapter row to be persisted, err=%v", err)
	}
	if ch.Text != result.Text {
		t.Fatalf("expected persisted chapter text to match result text")
	}

	var haveChapterChunk, haveSummaryChunk bool
	for _, c := range chunks.chunks {
		if c.ProjectID != "p1" {
			continue
		}
		if c.Type == rag.TypeChapter {
			haveChapterChunk = true
		}
		if c.Type == rag.TypeChapterSummary {
			haveSummaryChunk = true
		}
	}
	if !haveChapterChunk {
		t.Fatalf("expected a chapter-type chunk to be indexed")
	}
	if !haveSummaryChunk {
		t.Fatalf("expected a chapter_summary-type chunk to be indexed")
	}

	if len(sink.Events()) == 0 {
		t.Fatalf("expected structured events to be emitted")
	}
}

func TestExpandDoesNotReviseWithoutAutoRevise(t *testing.T) {
	chunks := newFakeChunkStore()
	projects := newFakeProjectStore()
	p, _ := project.New("p1", "fantasy", "", "", nil, "", 5)
	if err := projects.Create(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	o := newTestOrchestrator(t, chunks, projects, false)
	result, err := o.Expand(context.Background(), ExpandRequest{
		ProjectID:   "p1",
		ChapterNo:   1,
		Instruction: "begin the story",
	}, events.NewMemorySink())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if result.Revised {
		t.Fatalf("expected no revision when auto-revise is off")
	}
}
