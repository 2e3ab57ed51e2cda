package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// PostgresStore implements Store on PostgreSQL. RagDoc search uses a
// generated tsvector column with an ILIKE fallback.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and migrates.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			message_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'message',
			marker_key TEXT,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS task_results (
			result_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			task_type TEXT NOT NULL,
			product_name TEXT,
			result_data JSONB NOT NULL,
			report_path TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_results_session ON task_results(session_id, task_type, created_at)`,
		`CREATE TABLE IF NOT EXISTS rag_docs (
			doc_id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			meta_json JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(content, ''))) STORED
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_docs_tsv ON rag_docs USING GIN (tsv)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_docs_category ON rag_docs(category, created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSession creates a new session.
func (s *PostgresStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, created_at) VALUES ($1, $2)`,
		session.SessionID, session.CreatedAt)
	return err
}

// GetSession retrieves a session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, created_at FROM sessions WHERE session_id = $1`,
		sessionID).Scan(&session.SessionID, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AppendMessage appends a message and assigns its sequence number.
func (s *PostgresStore) AppendMessage(ctx context.Context, message *domain.Message) error {
	if message.MessageID == "" {
		message.MessageID = "msg_" + uuid.New().String()[:8]
	}
	if message.Kind == "" {
		message.Kind = domain.EntryMessage
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO messages (message_id, session_id, role, kind, marker_key, content, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7) RETURNING seq`,
		message.MessageID, message.SessionID, string(message.Role), string(message.Kind), message.MarkerKey, message.Content, message.CreatedAt,
	).Scan(&message.Seq)
}

// GetMessages retrieves every message for a session, oldest first.
func (s *PostgresStore) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, message_id, session_id, role, kind, COALESCE(marker_key, ''), content, created_at
		 FROM messages WHERE session_id = $1 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role, kind string
		if err := rows.Scan(&msg.Seq, &msg.MessageID, &msg.SessionID, &role, &kind, &msg.MarkerKey, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		msg.Kind = domain.EntryKind(kind)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveTaskResult stores a pipeline result.
func (s *PostgresStore) SaveTaskResult(ctx context.Context, result *domain.TaskResult) error {
	if result.ResultID == "" {
		result.ResultID = "res_" + uuid.New().String()[:8]
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO task_results (result_id, session_id, task_type, product_name, result_data, report_path, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7)`,
		result.ResultID, result.SessionID, string(result.TaskType), result.ProductName, string(result.ResultData), result.ReportPath, result.CreatedAt)
	return err
}

// ListTaskResults lists results for a session, newest first.
func (s *PostgresStore) ListTaskResults(ctx context.Context, sessionID string, filter domain.TaskResultFilter) ([]domain.TaskResult, error) {
	query := `SELECT result_id, session_id, task_type, COALESCE(product_name, ''), result_data::text, COALESCE(report_path, ''), created_at
		FROM task_results WHERE session_id = $1`
	args := []interface{}{sessionID}
	if filter.TaskType != "" {
		args = append(args, string(filter.TaskType))
		query += fmt.Sprintf(` AND task_type = $%d`, len(args))
	}
	if filter.ProductName != "" {
		args = append(args, "%"+filter.ProductName+"%")
		query += fmt.Sprintf(` AND product_name ILIKE $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.TaskResult
	for rows.Next() {
		result, err := scanPgTaskResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// LatestTaskResult returns the most recent result of a type, or nil.
func (s *PostgresStore) LatestTaskResult(ctx context.Context, sessionID string, taskType domain.TaskID) (*domain.TaskResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT result_id, session_id, task_type, COALESCE(product_name, ''), result_data::text, COALESCE(report_path, ''), created_at
		 FROM task_results WHERE session_id = $1 AND task_type = $2 ORDER BY created_at DESC LIMIT 1`,
		sessionID, string(taskType))
	result, err := scanPgTaskResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanPgTaskResult(row pgx.Row) (*domain.TaskResult, error) {
	var result domain.TaskResult
	var taskType, data string
	if err := row.Scan(&result.ResultID, &result.SessionID, &taskType, &result.ProductName, &data, &result.ReportPath, &result.CreatedAt); err != nil {
		return nil, err
	}
	result.TaskType = domain.TaskID(taskType)
	result.ResultData = []byte(data)
	return &result, nil
}

// AddRagDoc stores a document; the tsvector column indexes it.
func (s *PostgresStore) AddRagDoc(ctx context.Context, doc *domain.RagDoc) error {
	if doc.DocID == "" {
		doc.DocID = "doc_" + uuid.New().String()[:8]
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.Title = ragTitle(doc)
	var meta interface{}
	if len(doc.Metadata) > 0 {
		meta = string(doc.Metadata)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rag_docs (doc_id, category, title, content, meta_json, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.DocID, doc.Category, doc.Title, doc.Content, meta, doc.CreatedAt)
	return err
}

// SearchRagDocs ranks by ts_rank and falls back to ILIKE.
func (s *PostgresStore) SearchRagDocs(ctx context.Context, query, category string, k int) ([]domain.RagDoc, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = defaultSearchK
	}

	q := `SELECT doc_id, category, title, content, COALESCE(meta_json::text, ''), created_at
		FROM rag_docs, plainto_tsquery('simple', $1) query
		WHERE tsv @@ query AND ($2 = '' OR category = $2)
		ORDER BY ts_rank(tsv, query) DESC LIMIT $3`
	docs, err := s.queryRagDocs(ctx, q, query, category, k)
	if err == nil && len(docs) > 0 {
		return docs, nil
	}

	terms := tokenizeSearchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	args := []interface{}{category, k}
	var hits []string
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		hits = append(hits, fmt.Sprintf("(CASE WHEN title ILIKE $%d OR content ILIKE $%d THEN 1 ELSE 0 END)", len(args), len(args)))
	}
	like := `SELECT doc_id, category, title, content, meta, created_at FROM (
		SELECT doc_id, category, title, content, COALESCE(meta_json::text, '') AS meta, created_at,
			` + strings.Join(hits, " + ") + ` AS hits
		FROM rag_docs WHERE ($1 = '' OR category = $1)
	) ranked WHERE hits > 0 ORDER BY hits DESC, created_at DESC LIMIT $2`
	return s.queryRagDocs(ctx, like, args...)
}

func (s *PostgresStore) queryRagDocs(ctx context.Context, q string, args ...interface{}) ([]domain.RagDoc, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.RagDoc
	for rows.Next() {
		var doc domain.RagDoc
		var meta string
		if err := rows.Scan(&doc.DocID, &doc.Category, &doc.Title, &doc.Content, &meta, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if meta != "" {
			doc.Metadata = []byte(meta)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
