package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/story-engine/ragcore/internal/core/project"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
)

// ProjectStore persists project records and chapter drafts in the same
// SQLite file as the chunk store, following the teacher's one-adapter-
// per-aggregate convention.
type ProjectStore struct {
	db *sql.DB
}

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) Create(ctx context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, genre, setting, style, keywords, audience,
			target_chapters, outline_text, characters_json, chapter_map_json,
			event_log_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Genre, p.Setting, p.Style, strings.Join(p.Keywords, ","), p.Audience,
		p.TargetChapters, p.OutlineText, p.CharactersJSON, p.ChapterMapJSON,
		eventLogJSON(p.EventLog), p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ragerrors.NewAlreadyExists("project", p.ID)
		}
		return err
	}
	return nil
}

func (s *ProjectStore) GetByID(ctx context.Context, id string) (*project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, genre, setting, style, keywords, audience, target_chapters,
			outline_text, characters_json, chapter_map_json, event_log_json, created_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *ProjectStore) Update(ctx context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET genre=?, setting=?, style=?, keywords=?, audience=?,
			target_chapters=?, outline_text=?, characters_json=?, chapter_map_json=?,
			event_log_json=?
		WHERE id = ?`,
		p.Genre, p.Setting, p.Style, strings.Join(p.Keywords, ","), p.Audience,
		p.TargetChapters, p.OutlineText, p.CharactersJSON, p.ChapterMapJSON,
		eventLogJSON(p.EventLog), p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ragerrors.NewNotFound("project", p.ID)
	}
	return nil
}

func (s *ProjectStore) UpsertChapter(ctx context.Context, ch *project.Chapter) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, project_id, chapter_no, text, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, chapter_no) DO UPDATE SET
			text = excluded.text,
			updated_at = excluded.updated_at`,
		chapterID(ch.ProjectID, ch.Number), ch.ProjectID, ch.Number, ch.Text, now)
	return err
}

func (s *ProjectStore) GetChapter(ctx context.Context, projectID string, number int) (*project.Chapter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, chapter_no, text, updated_at
		FROM chapters WHERE project_id = ? AND chapter_no = ?`, projectID, number)

	var ch project.Chapter
	var updatedAt string
	if err := row.Scan(&ch.ProjectID, &ch.Number, &ch.Text, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ragerrors.NewNotFound("chapter", chapterID(projectID, number))
		}
		return nil, err
	}
	ch.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &ch, nil
}

func chapterID(projectID string, number int) string {
	return projectID + ":" + strconv.Itoa(number)
}

func eventLogJSON(events []string) string {
	if len(events) == 0 {
		return "[]"
	}
	b, err := json.Marshal(events)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func scanProject(row *sql.Row) (*project.Project, error) {
	var p project.Project
	var keywords, eventLog, createdAt string
	if err := row.Scan(&p.ID, &p.Genre, &p.Setting, &p.Style, &keywords, &p.Audience,
		&p.TargetChapters, &p.OutlineText, &p.CharactersJSON, &p.ChapterMapJSON,
		&eventLog, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ragerrors.NewNotFound("project", "")
		}
		return nil, err
	}
	if keywords != "" {
		p.Keywords = strings.Split(keywords, ",")
	}
	if eventLog != "" {
		_ = json.Unmarshal([]byte(eventLog), &p.EventLog)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
