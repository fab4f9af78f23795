package retrieval

import (
	"fmt"
	"strings"

	"github.com/story-engine/ragcore/internal/core/rag"
)

type section struct {
	title string
	cap   int
	types []rag.DocType
}

// sectionLayout is the fixed-order, capped grouping the context builder
// renders (§4.7). facts and foreshadowing share one capped union.
var sectionLayout = []section{
	{title: "style_guide (rules/taboos)", cap: 1, types: []rag.DocType{rag.TypeStyleGuide}},
	{title: "outline (beats / goal)", cap: 2, types: []rag.DocType{rag.TypeOutline}},
	{title: "characters (principal notes)", cap: 3, types: []rag.DocType{rag.TypeCharacters}},
	{title: "facts & foreshadowing (hot)", cap: 6, types: []rag.DocType{rag.TypeFacts, rag.TypeForeshadowing}},
	{title: "relevant chapter summaries", cap: 3, types: []rag.DocType{rag.TypeChapterSummary}},
	{title: "relevant chapter raw snippets", cap: 4, types: []rag.DocType{rag.TypeChapter}},
}

// BuildContext groups selected results by type into the fixed-order,
// labelled document the writer and critic prompts consume. Empty
// sections are omitted; instruction, if non-empty, is appended as its
// own trailing section.
func BuildContext(results []Result, instruction string) string {
	byType := map[rag.DocType][]Result{}
	for _, r := range results {
		byType[r.Chunk.Type] = append(byType[r.Chunk.Type], r)
	}

	var sb strings.Builder
	for _, sec := range sectionLayout {
		items := unionByTypes(byType, sec.types)
		if len(items) == 0 {
			continue
		}
		if len(items) > sec.cap {
			items = items[:sec.cap]
		}
		sb.WriteString("## " + sec.title + "\n")
		for _, it := range items {
			sb.WriteString(renderItem(it) + "\n")
		}
		sb.WriteString("\n")
	}

	if strings.TrimSpace(instruction) != "" {
		sb.WriteString("## instruction\n")
		sb.WriteString(strings.TrimSpace(instruction) + "\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func unionByTypes(byType map[rag.DocType][]Result, types []rag.DocType) []Result {
	var out []Result
	for _, t := range types {
		out = append(out, byType[t]...)
	}
	return out
}

func renderItem(r Result) string {
	return fmt.Sprintf("- (%s#%s score=%.3f) %s", r.Chunk.Type, r.Chunk.ID, r.Score, r.Chunk.Text)
}
