// Package sqlite implements the chunk store, the project/chapter store,
// and the embedding cache against a single SQLite file, with FTS5 as the
// keyword index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/story-engine/ragcore/internal/core/rag"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/vectorindex"
)

// ChunkStore is the primary-table + FTS5 keyword index implementation of
// chunkstore.ChunkStore. It also drives the vector index best-effort,
// per the degraded-mode contract: a vector-index failure is logged and
// does not fail the request.
type ChunkStore struct {
	db       *sql.DB
	vector   vectorindex.VectorIndex
	embed    embedTextsFunc
	log      logger.Logger
	hasFTS5  bool
}

// embedTextsFunc lets the chunk store request embeddings without
// depending on the embedder or cache packages directly; cmd/api-http
// wires in the embedding-cache-backed implementation.
type embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

var _ chunkstore.ChunkStore = (*ChunkStore)(nil)

func New(db *sql.DB, vector vectorindex.VectorIndex, embed embedTextsFunc, log logger.Logger) *ChunkStore {
	return &ChunkStore{
		db:      db,
		vector:  vector,
		embed:   embed,
		log:     log,
		hasFTS5: HasFTS5(db),
	}
}

// ReplaceBySource deletes any prior chunks of (projectID, docType,
// sourceID) and inserts newChunks, atomically in the primary table and
// keyword index. The vector index write happens after the transaction
// commits and is best-effort (invariant 1 / §4.5).
func (s *ChunkStore) ReplaceBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string, newChunks []*rag.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteBySourceTx(ctx, tx, projectID, docType, sourceID); err != nil {
		return err
	}

	for _, c := range newChunks {
		if err := c.Validate(); err != nil {
			return err
		}
		if err := insertChunkTx(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	if s.vector == nil || len(newChunks) == 0 {
		return nil
	}

	if err := s.writeVectors(ctx, projectID, newChunks); err != nil {
		s.log.Warn("vector index write failed, continuing in degraded mode",
			"project_id", projectID, "type", string(docType), "source_id", sourceID, "error", err.Error())
	}
	return nil
}

func (s *ChunkStore) writeVectors(ctx context.Context, projectID string, chunks []*rag.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return ragerrors.NewDegraded("vector_index", err)
	}

	ids := make([]string, len(chunks))
	metas := make([]map[string]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		metas[i] = c.Metadata
	}

	if err := s.vector.Upsert(ctx, projectID, ids, vectors, metas); err != nil {
		return ragerrors.NewDegraded("vector_index", err)
	}
	return nil
}

func (s *ChunkStore) DeleteBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string) error {
	// Collect ids first so the vector index deletion (outside the primary
	// transaction, per the design notes on three-way consistency) can
	// target them even after the primary rows are gone.
	ids, err := s.idsBySource(ctx, projectID, docType, sourceID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteBySourceTx(ctx, tx, projectID, docType, sourceID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	if s.vector != nil && len(ids) > 0 {
		if err := s.vector.Delete(ctx, projectID, ids); err != nil {
			s.log.Warn("vector index delete failed, continuing in degraded mode",
				"project_id", projectID, "error", err.Error())
		}
	}
	return nil
}

func (s *ChunkStore) idsBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM rag_chunks WHERE project_id = ? AND type = ? AND source_id = ?`,
		projectID, string(docType), sourceID)
	if err != nil {
		return nil, fmt.Errorf("query ids by source: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func deleteBySourceTx(ctx context.Context, tx *sql.Tx, projectID string, docType rag.DocType, sourceID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rag_chunks_fts WHERE project_id = ? AND type = ? AND source_id = ?`,
		projectID, string(docType), sourceID); err != nil {
		return fmt.Errorf("delete fts rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rag_chunks WHERE project_id = ? AND type = ? AND source_id = ?`,
		projectID, string(docType), sourceID); err != nil {
		return fmt.Errorf("delete primary rows: %w", err)
	}
	return nil
}

func insertChunkTx(ctx context.Context, tx *sql.Tx, c *rag.Chunk) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var chapterNo sql.NullInt64
	if c.ChapterNo != nil {
		chapterNo = sql.NullInt64{Int64: int64(*c.ChapterNo), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rag_chunks (id, project_id, type, source_id, chapter_no, characters, locations, pov, text, snippet, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, string(c.Type), c.SourceID, chapterNo,
		strings.Join(c.Characters, ","), strings.Join(c.Locations, ","), c.POV,
		c.Text, c.Snippet, string(metaJSON), c.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}

	chapterNoText := ""
	if c.ChapterNo != nil {
		chapterNoText = strconv.Itoa(*c.ChapterNo)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rag_chunks_fts (chunk_id, project_id, type, source_id, chapter_no, text)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, string(c.Type), c.SourceID, chapterNoText, c.Text,
	); err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return nil
}

// KeywordSearch runs an FTS5 bm25 query scoped by project, optional
// types, and the causal chapter bound, falling back to substring scoring
// when fts5 is unavailable (§4.6 step 3).
func (s *ChunkStore) KeywordSearch(ctx context.Context, projectID, query string, docTypes []rag.DocType, chapterMax *int, topK int) ([]chunkstore.KeywordHit, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}
	if s.hasFTS5 {
		return s.keywordSearchFTS(ctx, projectID, query, docTypes, chapterMax, topK)
	}
	return s.keywordSearchFallback(ctx, projectID, query, docTypes, chapterMax, topK)
}

func (s *ChunkStore) keywordSearchFTS(ctx context.Context, projectID, query string, docTypes []rag.DocType, chapterMax *int, topK int) ([]chunkstore.KeywordHit, error) {
	var sb strings.Builder
	args := []any{sanitizeFTSQuery(query), projectID}
	sb.WriteString(`SELECT chunk_id, bm25(rag_chunks_fts) AS rank
		FROM rag_chunks_fts
		WHERE rag_chunks_fts MATCH ? AND project_id = ?`)

	if len(docTypes) > 0 {
		placeholders := make([]string, len(docTypes))
		for i, t := range docTypes {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		sb.WriteString(" AND type IN (" + strings.Join(placeholders, ",") + ")")
	}
	if chapterMax != nil {
		sb.WriteString(" AND (type != ? OR CAST(chapter_no AS INTEGER) <= ?)")
		args = append(args, string(rag.TypeChapter), *chapterMax)
	}
	sb.WriteString(" ORDER BY rank LIMIT ?")
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var ids []string
	ranks := map[string]float64{}
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		ranks[id] = rank
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chunks, err := s.getChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]chunkstore.KeywordHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, chunkstore.KeywordHit{Chunk: c, Rank: ranks[c.ID]})
	}
	return hits, nil
}

// keywordSearchFallback scores by raw substring occurrence count when
// fts5 is not compiled in, using up to 8 tokens of >= 2 chars from the
// query.
func (s *ChunkStore) keywordSearchFallback(ctx context.Context, projectID, query string, docTypes []rag.DocType, chapterMax *int, topK int) ([]chunkstore.KeywordHit, error) {
	tokens := fallbackTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := []any{projectID}
	sb.WriteString(`SELECT id, project_id, type, source_id, chapter_no, characters, locations, pov, text, snippet, metadata_json, created_at
		FROM rag_chunks WHERE project_id = ?`)
	if len(docTypes) > 0 {
		placeholders := make([]string, len(docTypes))
		for i, t := range docTypes {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		sb.WriteString(" AND type IN (" + strings.Join(placeholders, ",") + ")")
	}
	if chapterMax != nil {
		sb.WriteString(" AND (type != ? OR chapter_no <= ?)")
		args = append(args, string(rag.TypeChapter), *chapterMax)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("fallback query: %w", err)
	}
	defer rows.Close()

	var hits []chunkstore.KeywordHit
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		lower := strings.ToLower(c.Text)
		score := 0.0
		for _, tok := range tokens {
			score += float64(strings.Count(lower, tok))
		}
		if score > 0 {
			hits = append(hits, chunkstore.KeywordHit{Chunk: c, Rank: -score}) // lower rank = better, matches bm25 polarity
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Best (most negative rank) first, capped at topK.
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].Rank < hits[i].Rank {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func fallbackTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
			if len(out) == 8 {
				break
			}
		}
	}
	return out
}

func sanitizeFTSQuery(query string) string {
	// Quote each token so punctuation in user input can't be interpreted
	// as FTS5 query-syntax operators.
	tokens := strings.Fields(query)
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	if len(quoted) == 0 {
		return `""`
	}
	return strings.Join(quoted, " OR ")
}

func (s *ChunkStore) GetByID(ctx context.Context, chunkID string) (*rag.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, type, source_id, chapter_no, characters, locations, pov, text, snippet, metadata_json, created_at
		FROM rag_chunks WHERE id = ?`, chunkID)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ragerrors.NewNotFound("chunk", chunkID)
	}
	return c, err
}

func (s *ChunkStore) getChunksByIDs(ctx context.Context, ids []string) ([]*rag.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, project_id, type, source_id, chapter_no, characters, locations, pov, text, snippet, metadata_json, created_at
		FROM rag_chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]*rag.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*rag.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*rag.Chunk, error) {
	var (
		c             rag.Chunk
		typ           string
		chapterNo     sql.NullInt64
		characters    string
		locations     string
		metaJSON      string
		createdAtText string
	)
	if err := row.Scan(&c.ID, &c.ProjectID, &typ, &c.SourceID, &chapterNo, &characters, &locations, &c.POV, &c.Text, &c.Snippet, &metaJSON, &createdAtText); err != nil {
		return nil, err
	}
	c.Type = rag.DocType(typ)
	if chapterNo.Valid {
		n := int(chapterNo.Int64)
		c.ChapterNo = &n
	}
	if characters != "" {
		c.Characters = strings.Split(characters, ",")
	}
	if locations != "" {
		c.Locations = strings.Split(locations, ",")
	}
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtText); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

func (s *ChunkStore) Stats(ctx context.Context, projectID string) (map[rag.DocType]chunkstore.TypeStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*), MAX(created_at)
		FROM rag_chunks WHERE project_id = ?
		GROUP BY type`, projectID)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	out := map[rag.DocType]chunkstore.TypeStats{}
	for rows.Next() {
		var typ string
		var count int
		var lastUpdated string
		if err := rows.Scan(&typ, &count, &lastUpdated); err != nil {
			return nil, err
		}
		out[rag.DocType(typ)] = chunkstore.TypeStats{Chunks: count, LastUpdatedAt: lastUpdated}
	}
	return out, rows.Err()
}
