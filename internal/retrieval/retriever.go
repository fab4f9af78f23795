package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/story-engine/ragcore/internal/core/rag"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/reranker"
	"github.com/story-engine/ragcore/internal/ports/vectorindex"
)

// QueryEmbedder is the narrow embedding capability the retriever needs;
// satisfied by both the embedder port directly and the embedding-cache
// composition in internal/embedcache.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs the fixed 8-step hybrid retrieval pipeline.
type Retriever struct {
	chunks   chunkstore.ChunkStore
	vectors  vectorindex.VectorIndex
	embedder QueryEmbedder
	reranker reranker.Reranker
	log      logger.Logger

	typeWeights map[rag.DocType]float64
	quotas      map[rag.DocType]int
}

func New(chunks chunkstore.ChunkStore, vectors vectorindex.VectorIndex, embedder QueryEmbedder, rr reranker.Reranker, log logger.Logger) *Retriever {
	return &Retriever{
		chunks:      chunks,
		vectors:     vectors,
		embedder:    embedder,
		reranker:    rr,
		log:         log,
		typeWeights: DefaultTypeWeights,
		quotas:      DefaultQuotas,
	}
}

func causalBound(filters Filters) *int {
	if filters.ChapterNo == nil || !filters.ChapterOnlyBefore {
		return nil
	}
	max := *filters.ChapterNo - 1
	return &max
}

// Retrieve runs the full pipeline scoped by filters and returns up to
// topK selected chunks.
func (r *Retriever) Retrieve(ctx context.Context, projectID, query string, filters Filters, topK int) ([]Result, error) {
	debug, err := r.retrieveWithDebug(ctx, projectID, query, filters, topK, false)
	if err != nil {
		return nil, err
	}
	return debug.Final, nil
}

// RetrievePreview runs the pipeline and additionally computes the
// unfiltered vector/keyword debug views, for the rag/preview endpoint.
func (r *Retriever) RetrievePreview(ctx context.Context, projectID, query string, filters Filters, topK int) (*Debug, error) {
	return r.retrieveWithDebug(ctx, projectID, query, filters, topK, true)
}

func (r *Retriever) retrieveWithDebug(ctx context.Context, projectID, query string, filters Filters, topK int, wantDebugViews bool) (*Debug, error) {
	chapterMax := causalBound(filters)
	topKV := filters.TopKVector
	if topKV <= 0 {
		topKV = 10
	}
	topKKW := filters.TopKKeyword
	if topKKW <= 0 {
		topKKW = 10
	}

	if query == "" {
		return &Debug{}, nil
	}

	var vectorHits, keywordHits []Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := r.denseChannel(gctx, projectID, query, filters.Types, topKV)
		if err != nil {
			r.log.Warn("vector channel failed, continuing with keyword channel only", "error", err.Error())
			return nil
		}
		vectorHits = hits
		return nil
	})

	g.Go(func() error {
		hits, err := r.sparseChannel(gctx, projectID, query, filters.Types, chapterMax, topKKW)
		if err != nil {
			r.log.Warn("keyword channel failed, continuing with vector channel only", "error", err.Error())
			return nil
		}
		keywordHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeChannels(vectorHits, keywordHits)
	reranked := r.rerank(ctx, query, merged, filters.ChapterNo)
	r.applyCausalOverride(reranked, chapterMax)
	final := r.selectByQuota(reranked, topK)

	debug := &Debug{
		Merged:   merged,
		Reranked: reranked,
		Final:    final,
	}

	if wantDebugViews {
		// Unfiltered debug views, matching the preserved asymmetry where
		// preview's intermediate stages ignore the type filter that the
		// final selection applies.
		rawVector, err := r.denseChannel(ctx, projectID, query, nil, topKV)
		if err == nil {
			debug.VectorHits = rawVector
		}
		rawKeyword, err := r.sparseChannel(ctx, projectID, query, nil, chapterMax, topKKW)
		if err == nil {
			debug.KeywordHits = rawKeyword
		}
	} else {
		debug.VectorHits = vectorHits
		debug.KeywordHits = keywordHits
	}

	return debug, nil
}

func (r *Retriever) denseChannel(ctx context.Context, projectID, query string, types []rag.DocType, topK int) ([]Result, error) {
	if r.vectors == nil {
		return nil, nil
	}
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.vectors.Search(ctx, projectID, vec, topK*3, nil)
	if err != nil {
		return nil, err
	}

	typeSet := toTypeSet(types)
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		chunk, err := r.chunks.GetByID(ctx, h.ChunkID)
		if err != nil || chunk == nil {
			continue
		}
		if len(typeSet) > 0 && !typeSet[chunk.Type] {
			continue
		}
		results = append(results, Result{
			Chunk:   chunk,
			Channel: ChannelVector,
			Score:   1 / (1 + h.Distance),
		})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

func (r *Retriever) sparseChannel(ctx context.Context, projectID, query string, types []rag.DocType, chapterMax *int, topK int) ([]Result, error) {
	hits, err := r.chunks.KeywordSearch(ctx, projectID, query, types, chapterMax, topK)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Chunk:   h.Chunk,
			Channel: ChannelKeyword,
			Score:   1 / (1 + h.Rank),
		})
	}
	return results, nil
}

func toTypeSet(types []rag.DocType) map[rag.DocType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[rag.DocType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// mergeChannels deduplicates by chunk id, keeping the max of the two
// scores and labelling collisions as vector+keyword.
func mergeChannels(vectorHits, keywordHits []Result) []Result {
	byID := map[string]*Result{}
	order := make([]string, 0, len(vectorHits)+len(keywordHits))

	add := func(res Result) {
		existing, ok := byID[res.Chunk.ID]
		if !ok {
			copy := res
			byID[res.Chunk.ID] = &copy
			order = append(order, res.Chunk.ID)
			return
		}
		if res.Score > existing.Score {
			existing.Score = res.Score
		}
		existing.Channel = ChannelBoth
	}

	for _, v := range vectorHits {
		add(v)
	}
	for _, k := range keywordHits {
		add(k)
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// rerank calls the reranker over the merged candidates; on failure the
// merged scores are reused unchanged. When the reranker is the rule-based
// mock, an additional lift is applied (§4.6 step 6).
func (r *Retriever) rerank(ctx context.Context, query string, merged []Result, targetChapterNo *int) []Result {
	if len(merged) == 0 {
		return merged
	}

	texts := make([]string, len(merged))
	for i, m := range merged {
		texts[i] = m.Chunk.Text
	}

	scores, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil || len(scores) != len(merged) {
		r.log.Warn("rerank failed, reusing merged scores", "error", errString(err))
		return merged
	}

	out := make([]Result, len(merged))
	for i, m := range merged {
		out[i] = Result{Chunk: m.Chunk, Channel: ChannelRerank, Score: scores[i]}
	}

	if r.reranker.Kind() == reranker.KindRule {
		r.applyRuleLift(out, query, targetChapterNo)
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *Retriever) applyRuleLift(results []Result, query string, targetChapterNo *int) {
	tokens := queryTokens(query)
	for i := range results {
		res := &results[i]
		weight := r.typeWeights[res.Chunk.Type]
		if weight == 0 {
			weight = 1.0
		}
		res.Score *= weight

		hits := countHits(res.Chunk.Text, tokens)
		res.Score += math.Min(3.0, float64(hits)*0.5)

		if targetChapterNo != nil && res.Chunk.ChapterNo != nil {
			gap := *targetChapterNo - *res.Chunk.ChapterNo
			if gap < 0 {
				gap = 0
			}
			res.Score += 1.5 / (1 + float64(gap))
		}

		if len([]rune(res.Chunk.Text)) > 1600 {
			res.Score *= 0.85
		}
	}
}

func queryTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func countHits(text string, tokens []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, t := range tokens {
		count += strings.Count(lower, t)
	}
	return count
}

// applyCausalOverride enforces invariant 5: any type=chapter chunk with
// chapter_no > chapterMax is pinned to a rejection score so it can never
// survive quota selection, regardless of channel (§4.6 step 7 / the
// preserved vector-channel asymmetry — there is no equivalent WHERE
// clause for the vector channel, only this post-score override).
func (r *Retriever) applyCausalOverride(results []Result, chapterMax *int) {
	if chapterMax == nil {
		return
	}
	for i := range results {
		res := &results[i]
		if res.Chunk.Type == rag.TypeChapter && res.Chunk.ChapterNo != nil && *res.Chunk.ChapterNo > *chapterMax {
			res.Score = causalRejectScore
		}
	}
}

// selectByQuota sorts by score descending (stable, ties by insertion
// order) and includes chunks while their type's quota allows, stopping
// at topK (§4.6 step 8).
func (r *Retriever) selectByQuota(results []Result, topK int) []Result {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	counts := map[rag.DocType]int{}
	out := make([]Result, 0, topK)
	for _, res := range sorted {
		if len(out) >= topK {
			break
		}
		if res.Score <= causalRejectScore {
			continue
		}
		quota, ok := r.quotas[res.Chunk.Type]
		if !ok {
			quota = topK // untracked types are unbounded except by topK
		}
		if counts[res.Chunk.Type] >= quota {
			continue
		}
		counts[res.Chunk.Type]++
		out = append(out, res)
	}
	return out
}
