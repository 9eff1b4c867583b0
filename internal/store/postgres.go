package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/ai"
	"github.com/hirelinehq/hireline/internal/conversation"
	"github.com/hirelinehq/hireline/internal/knowledge"
)

const pingTimeout = 5 * time.Second

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		platform TEXT NOT NULL,
		platform_user_id TEXT NOT NULL,
		username TEXT,
		full_name TEXT,
		email TEXT,
		phone TEXT,
		applied_role TEXT,
		citizenship_status TEXT,
		current_status TEXT NOT NULL DEFAULT 'new_application',
		ai_score DOUBLE PRECISION,
		ai_category TEXT,
		ai_summary TEXT,
		screening_result JSONB,
		resume_url TEXT,
		UNIQUE (platform, platform_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		platform TEXT NOT NULL,
		platform_user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages (platform, platform_user_id, id)`,
	`CREATE TABLE IF NOT EXISTS knowledgebase (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value JSONB NOT NULL,
		created_by TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (category, key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledgebase_category
		ON knowledgebase (category)`,
}

const candidateColumns = `id, platform, platform_user_id, username, full_name,
	email, phone, applied_role, citizenship_status, current_status, ai_score,
	ai_category, ai_summary, screening_result, resume_url, created_at, updated_at`

// Postgres is the durable Repository. It also serves as the knowledge
// store's external Source and carries the CRUD used by the admin commands.
type Postgres struct {
	db        *sql.DB
	resumeDir string
	logger    *zap.Logger
}

// OpenPostgres connects, verifies the connection, and bootstraps the
// schema. resumeDir is where uploaded resume files are written.
func OpenPostgres(ctx context.Context, dsn, resumeDir string, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: db, resumeDir: resumeDir, logger: logger}
	if err := p.bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) bootstrap(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// LoadState reconstructs conversation state from the candidate row plus the
// recent transcript. Unknown keys return nil without error.
func (p *Postgres) LoadState(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	rec, err := p.candidateByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	history, err := p.LoadMessages(ctx, key, conversation.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return ReconstructState(rec, history), nil
}

// SaveState upserts the fields the conversation itself can establish. The
// row is created on first contact with status new_application; screening
// data is untouched here.
func (p *Postgres) SaveState(ctx context.Context, state *conversation.State) error {
	const query = `
		INSERT INTO candidates (id, platform, platform_user_id, full_name, applied_role)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (platform, platform_user_id) DO UPDATE SET
			full_name    = COALESCE(EXCLUDED.full_name, candidates.full_name),
			applied_role = COALESCE(EXCLUDED.applied_role, candidates.applied_role),
			updated_at   = NOW()`
	_, err := p.db.ExecContext(ctx, query,
		uuid.New().String(),
		state.Key.Platform,
		state.Key.UserID,
		state.CandidateName,
		state.AppliedRole,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// AppendMessage adds one turn to the append-only transcript.
func (p *Postgres) AppendMessage(ctx context.Context, key conversation.Key, msg ai.Message) error {
	const query = `
		INSERT INTO messages (platform, platform_user_id, role, content)
		VALUES ($1, $2, $3, $4)`
	_, err := p.db.ExecContext(ctx, query, key.Platform, key.UserID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// LoadMessages returns the most recent limit messages in chronological
// order. limit <= 0 falls back to the working history cap.
func (p *Postgres) LoadMessages(ctx context.Context, key conversation.Key, limit int) ([]ai.Message, error) {
	if limit <= 0 {
		limit = conversation.HistoryLimit
	}
	const query = `
		SELECT role, content FROM (
			SELECT id, role, content FROM messages
			WHERE platform = $1 AND platform_user_id = $2
			ORDER BY id DESC LIMIT $3
		) recent ORDER BY id ASC`
	rows, err := p.db.QueryContext(ctx, query, key.Platform, key.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var history []ai.Message
	for rows.Next() {
		var msg ai.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

// SaveCandidate upserts the candidate row. Screened records overwrite the
// screening columns; plain application records only fill identity gaps.
func (p *Postgres) SaveCandidate(ctx context.Context, rec *CandidateRecord) error {
	if rec.Screened() {
		return p.saveScreened(ctx, rec)
	}
	const query = `
		INSERT INTO candidates (id, platform, platform_user_id, username, full_name, resume_url)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (platform, platform_user_id) DO UPDATE SET
			username   = COALESCE(EXCLUDED.username, candidates.username),
			full_name  = COALESCE(EXCLUDED.full_name, candidates.full_name),
			resume_url = COALESCE(EXCLUDED.resume_url, candidates.resume_url),
			updated_at = NOW()`
	_, err := p.db.ExecContext(ctx, query,
		uuid.New().String(),
		rec.Platform,
		rec.PlatformUserID,
		rec.Username,
		rec.FullName,
		rec.ResumeURL,
	)
	if err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

func (p *Postgres) saveScreened(ctx context.Context, rec *CandidateRecord) error {
	const query = `
		INSERT INTO candidates (
			id, platform, platform_user_id, username, full_name, email, phone,
			applied_role, citizenship_status, current_status, ai_score,
			ai_category, ai_summary, screening_result, resume_url
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			NULLIF($8, ''), $9, $10, $11, $12, NULLIF($13, ''), $14, NULLIF($15, '')
		)
		ON CONFLICT (platform, platform_user_id) DO UPDATE SET
			username           = COALESCE(EXCLUDED.username, candidates.username),
			full_name          = COALESCE(EXCLUDED.full_name, candidates.full_name),
			email              = COALESCE(EXCLUDED.email, candidates.email),
			phone              = COALESCE(EXCLUDED.phone, candidates.phone),
			applied_role       = COALESCE(EXCLUDED.applied_role, candidates.applied_role),
			citizenship_status = EXCLUDED.citizenship_status,
			current_status     = EXCLUDED.current_status,
			ai_score           = EXCLUDED.ai_score,
			ai_category        = EXCLUDED.ai_category,
			ai_summary         = EXCLUDED.ai_summary,
			screening_result   = EXCLUDED.screening_result,
			resume_url         = COALESCE(EXCLUDED.resume_url, candidates.resume_url),
			updated_at         = NOW()`
	var screening any
	if rec.ScreeningJSON != "" {
		screening = []byte(rec.ScreeningJSON)
	}
	_, err := p.db.ExecContext(ctx, query,
		uuid.New().String(),
		rec.Platform,
		rec.PlatformUserID,
		rec.Username,
		rec.FullName,
		rec.Email,
		rec.Phone,
		rec.AppliedRole,
		rec.CitizenshipStatus,
		rec.CurrentStatus,
		rec.AIScore,
		rec.AICategory,
		rec.AISummary,
		screening,
		rec.ResumeURL,
	)
	if err != nil {
		return fmt.Errorf("save screened candidate: %w", err)
	}
	return nil
}

// UploadResume writes the raw file under the resume directory and returns
// its path as the stored URL.
func (p *Postgres) UploadResume(ctx context.Context, key conversation.Key, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty resume payload")
	}
	if err := os.MkdirAll(p.resumeDir, 0o755); err != nil {
		return "", fmt.Errorf("create resume dir: %w", err)
	}
	path := filepath.Join(p.resumeDir, uuid.New().String()+"_"+safeFilename(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write resume: %w", err)
	}
	p.logger.Debug("resume stored",
		zap.String("conversation", key.String()),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}

// ListCandidates returns all candidates, best scores first.
func (p *Postgres) ListCandidates(ctx context.Context) ([]CandidateRecord, error) {
	query := `SELECT ` + candidateColumns + `
		FROM candidates
		ORDER BY ai_score DESC NULLS LAST, updated_at DESC`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var records []CandidateRecord
	for rows.Next() {
		rec, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// PurgeCandidates deletes every candidate and message row. Returns the
// number of candidates removed.
func (p *Postgres) PurgeCandidates(ctx context.Context) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM candidates`)
	if err != nil {
		return 0, fmt.Errorf("purge candidates: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge candidates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return removed, nil
}

func (p *Postgres) candidateByKey(ctx context.Context, key conversation.Key) (*CandidateRecord, error) {
	query := `SELECT ` + candidateColumns + `
		FROM candidates WHERE platform = $1 AND platform_user_id = $2`
	rec, err := scanCandidate(p.db.QueryRowContext(ctx, query, key.Platform, key.UserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*CandidateRecord, error) {
	var rec CandidateRecord
	var username, fullName, email, phone sql.NullString
	var appliedRole, citizenship, currentStatus sql.NullString
	var aiCategory, aiSummary, resumeURL sql.NullString
	var aiScore sql.NullFloat64
	var screening []byte
	err := row.Scan(
		&rec.ID, &rec.Platform, &rec.PlatformUserID, &username, &fullName,
		&email, &phone, &appliedRole, &citizenship, &currentStatus, &aiScore,
		&aiCategory, &aiSummary, &screening, &resumeURL, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	rec.Username = username.String
	rec.FullName = fullName.String
	rec.Email = email.String
	rec.Phone = phone.String
	rec.AppliedRole = appliedRole.String
	rec.CitizenshipStatus = citizenship.String
	rec.CurrentStatus = currentStatus.String
	rec.AIScore = aiScore.Float64
	rec.AICategory = aiCategory.String
	rec.AISummary = aiSummary.String
	rec.ScreeningJSON = string(screening)
	rec.ResumeURL = resumeURL.String
	return &rec, nil
}

// FetchKnowledge returns the active knowledgebase rows for the knowledge
// store's refresh cycle.
func (p *Postgres) FetchKnowledge(ctx context.Context) ([]knowledge.Entry, error) {
	const query = `
		SELECT category, key, value, is_active FROM knowledgebase
		WHERE is_active = TRUE ORDER BY category, key`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge: %w", err)
	}
	defer rows.Close()

	var entries []knowledge.Entry
	for rows.Next() {
		var (
			entry knowledge.Entry
			value []byte
		)
		if err := rows.Scan(&entry.Category, &entry.Key, &value, &entry.Active); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		if err := json.Unmarshal(value, &entry.Value); err != nil {
			p.logger.Warn("knowledge entry has invalid JSON value, skipped",
				zap.String("category", entry.Category),
				zap.String("key", entry.Key),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpsertKnowledge writes or reactivates one knowledgebase entry.
func (p *Postgres) UpsertKnowledge(ctx context.Context, entry knowledge.Entry, createdBy string) error {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("encode knowledge value: %w", err)
	}
	const query = `
		INSERT INTO knowledgebase (id, category, key, value, created_by, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), TRUE)
		ON CONFLICT (category, key) DO UPDATE SET
			value      = EXCLUDED.value,
			created_by = COALESCE(EXCLUDED.created_by, knowledgebase.created_by),
			is_active  = TRUE,
			updated_at = NOW()`
	if _, err := p.db.ExecContext(ctx, query,
		uuid.New().String(), entry.Category, entry.Key, value, createdBy,
	); err != nil {
		return fmt.Errorf("upsert knowledge: %w", err)
	}
	return nil
}

// DeleteKnowledge soft-deletes one entry; the seeded default resurfaces on
// the next refresh.
func (p *Postgres) DeleteKnowledge(ctx context.Context, category, key string) error {
	const query = `
		UPDATE knowledgebase SET is_active = FALSE, updated_at = NOW()
		WHERE category = $1 AND key = $2 AND is_active = TRUE`
	res, err := p.db.ExecContext(ctx, query, category, key)
	if err != nil {
		return fmt.Errorf("delete knowledge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete knowledge: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("knowledge entry %s/%s not found", category, key)
	}
	return nil
}

// ListKnowledge returns active entries, optionally filtered to one category.
func (p *Postgres) ListKnowledge(ctx context.Context, category string) ([]knowledge.Entry, error) {
	query := `SELECT category, key, value, is_active FROM knowledgebase WHERE is_active = TRUE`
	var args []any
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY category, key`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close()

	var entries []knowledge.Entry
	for rows.Next() {
		var (
			entry knowledge.Entry
			value []byte
		)
		if err := rows.Scan(&entry.Category, &entry.Key, &value, &entry.Active); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		if err := json.Unmarshal(value, &entry.Value); err != nil {
			return nil, fmt.Errorf("decode knowledge value %s/%s: %w", entry.Category, entry.Key, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
