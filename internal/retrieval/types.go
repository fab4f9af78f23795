// Package retrieval implements the hybrid dual-channel retriever (§4.6)
// and the context builder (§4.7).
package retrieval

import "github.com/story-engine/ragcore/internal/core/rag"

// Channel names the origin of a retrieval hit.
type Channel string

const (
	ChannelVector  Channel = "vector"
	ChannelKeyword Channel = "keyword"
	ChannelBoth    Channel = "vector+keyword"
	ChannelRerank  Channel = "rerank"
)

// Result is one chunk annotated with its originating channel and final
// score.
type Result struct {
	Chunk   *rag.Chunk
	Channel Channel
	Score   float64
}

// Filters scopes a retrieve call.
type Filters struct {
	Types             []rag.DocType
	ChapterNo         *int
	ChapterOnlyBefore bool // zero value false applies no causal bound; set it to true to bound chapter chunks
	TopKVector        int
	TopKKeyword       int
}

// DefaultTypeWeights are the rule-based lift's per-type multipliers
// (§4.6 step 6).
var DefaultTypeWeights = map[rag.DocType]float64{
	rag.TypeStyleGuide:     1.8,
	rag.TypeWorld:          1.5,
	rag.TypeOutline:        1.6,
	rag.TypeCharacters:     1.7,
	rag.TypeChapterSummary: 1.4,
	rag.TypeFacts:          1.5,
	rag.TypeForeshadowing:  1.3,
	rag.TypeChapter:        1.0,
}

// DefaultQuotas are the per-type selection caps (§4.6 step 8).
var DefaultQuotas = map[rag.DocType]int{
	rag.TypeStyleGuide:     1,
	rag.TypeWorld:          2,
	rag.TypeOutline:        2,
	rag.TypeCharacters:     3,
	rag.TypeChapterSummary: 3,
	rag.TypeFacts:          3,
	rag.TypeForeshadowing:  2,
	rag.TypeChapter:        4,
}

const causalRejectScore = -1e9

// Debug carries every intermediate stage of one retrieve call, exposed by
// the rag/preview HTTP endpoint. Per the design notes, the vector and
// keyword stage views are computed without the caller's type filter
// (matching the asymmetry preserved from the original implementation),
// while Merged/Reranked/Final reflect the fully filtered pipeline.
type Debug struct {
	VectorHits  []Result
	KeywordHits []Result
	Merged      []Result
	Reranked    []Result
	Final       []Result
}
