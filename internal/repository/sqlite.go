package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	ftsEnabled bool
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withSQLiteOptions(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	// Shared-cache connections take table locks the busy timeout never retries.
	if isMemoryDSN(dsn) || strings.Contains(dsn, "cache=shared") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withSQLiteOptions adds per-connection settings the caller did not set:
// foreign keys, a busy timeout, BEGIN IMMEDIATE and WAL for file databases.
// They ride on the DSN so every pooled connection gets them.
func withSQLiteOptions(dsn string) string {
	opts := []struct{ key, val string }{
		{"_foreign_keys", "on"},
		{"_busy_timeout", "5000"},
		{"_txlock", "immediate"},
	}
	if !isMemoryDSN(dsn) {
		opts = append(opts, struct{ key, val string }{"_journal_mode", "WAL"})
	}

	var extra []string
	for _, o := range opts {
		if !strings.Contains(dsn, o.key+"=") {
			extra = append(extra, o.key+"="+o.val)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS task_results (
			result_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			product_name TEXT,
			result_data TEXT NOT NULL,
			report_path TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_results_session ON task_results(session_id, task_type, created_at)`,
		`CREATE TABLE IF NOT EXISTS rag_docs (
			doc_id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			meta_json TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_docs_category ON rag_docs(category, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Entry tagging columns for databases created before the log kept kinds.
	if err := s.ensureColumn("messages", "kind", "ALTER TABLE messages ADD COLUMN kind TEXT NOT NULL DEFAULT 'message'"); err != nil {
		return err
	}
	if err := s.ensureColumn("messages", "marker_key", "ALTER TABLE messages ADD COLUMN marker_key TEXT"); err != nil {
		return err
	}

	return s.ensureFTSTable()
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// ensureFTSTable creates the rag_fts index, or a plain table when the
// sqlite build has no FTS5 module.
func (s *SQLiteStore) ensureFTSTable() error {
	var sqlDef string
	err := s.db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'rag_fts'`).Scan(&sqlDef)
	if err == nil {
		lower := strings.ToLower(sqlDef)
		s.ftsEnabled = strings.Contains(lower, "virtual table") && strings.Contains(lower, "fts5")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("inspect rag_fts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE VIRTUAL TABLE rag_fts USING fts5(
		doc_id UNINDEXED,
		title,
		content
	)`)
	if err == nil {
		s.ftsEnabled = true
		return nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "no such module: fts5") {
		return fmt.Errorf("create rag_fts: %w", err)
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS rag_fts (
		doc_id TEXT PRIMARY KEY,
		title TEXT,
		content TEXT
	)`); err != nil {
		return fmt.Errorf("create rag_fts fallback table: %w", err)
	}
	s.ftsEnabled = false
	return nil
}

// FTSEnabled reports whether RagDoc search uses the FTS5 index.
func (s *SQLiteStore) FTSEnabled() bool {
	return s.ftsEnabled
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at) VALUES (?, ?)`,
		session.SessionID, session.CreatedAt)
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AppendMessage appends a message and assigns its sequence number.
func (s *SQLiteStore) AppendMessage(ctx context.Context, message *domain.Message) error {
	if message.MessageID == "" {
		message.MessageID = "msg_" + uuid.New().String()[:8]
	}
	if message.Kind == "" {
		message.Kind = domain.EntryMessage
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, role, kind, marker_key, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, message.Role, message.Kind, nullString(message.MarkerKey), message.Content, message.CreatedAt)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	message.Seq = seq
	return nil
}

// GetMessages retrieves every message for a session, oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, message_id, session_id, role, kind, marker_key, content, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var markerKey sql.NullString
		if err := rows.Scan(&msg.Seq, &msg.MessageID, &msg.SessionID, &msg.Role, &msg.Kind, &markerKey, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if markerKey.Valid {
			msg.MarkerKey = markerKey.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveTaskResult stores a pipeline result.
func (s *SQLiteStore) SaveTaskResult(ctx context.Context, result *domain.TaskResult) error {
	if result.ResultID == "" {
		result.ResultID = "res_" + uuid.New().String()[:8]
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_results (result_id, session_id, task_type, product_name, result_data, report_path, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.ResultID, result.SessionID, result.TaskType, nullString(result.ProductName), string(result.ResultData), nullString(result.ReportPath), result.CreatedAt)
	return err
}

// ListTaskResults lists results for a session, newest first.
func (s *SQLiteStore) ListTaskResults(ctx context.Context, sessionID string, filter domain.TaskResultFilter) ([]domain.TaskResult, error) {
	query := `SELECT result_id, session_id, task_type, product_name, result_data, report_path, created_at FROM task_results WHERE session_id = ?`
	args := []interface{}{sessionID}

	if filter.TaskType != "" {
		query += ` AND task_type = ?`
		args = append(args, filter.TaskType)
	}
	if filter.ProductName != "" {
		query += ` AND product_name LIKE ?`
		args = append(args, "%"+filter.ProductName+"%")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.TaskResult
	for rows.Next() {
		result, err := scanTaskResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// LatestTaskResult returns the most recent result of a type, or nil.
func (s *SQLiteStore) LatestTaskResult(ctx context.Context, sessionID string, taskType domain.TaskID) (*domain.TaskResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result_id, session_id, task_type, product_name, result_data, report_path, created_at
		 FROM task_results WHERE session_id = ? AND task_type = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		sessionID, taskType)
	result, err := scanTaskResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTaskResult(row rowScanner) (*domain.TaskResult, error) {
	var result domain.TaskResult
	var productName, reportPath sql.NullString
	var data string
	if err := row.Scan(&result.ResultID, &result.SessionID, &result.TaskType, &productName, &data, &reportPath, &result.CreatedAt); err != nil {
		return nil, err
	}
	result.ResultData = []byte(data)
	if productName.Valid {
		result.ProductName = productName.String
	}
	if reportPath.Valid {
		result.ReportPath = reportPath.String
	}
	return &result, nil
}

// AddRagDoc stores a document and indexes its title and content.
func (s *SQLiteStore) AddRagDoc(ctx context.Context, doc *domain.RagDoc) error {
	if doc.DocID == "" {
		doc.DocID = "doc_" + uuid.New().String()[:8]
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.Title = ragTitle(doc)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rag_docs (doc_id, category, title, content, meta_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.DocID, doc.Category, doc.Title, doc.Content, nullStringBytes(doc.Metadata), doc.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rag_fts (doc_id, title, content) VALUES (?, ?, ?)`,
		doc.DocID, doc.Title, doc.Content); err != nil {
		return fmt.Errorf("failed to index rag doc: %w", err)
	}
	return tx.Commit()
}

// SearchRagDocs runs a ranked full-text search, falling back to substring
// matching when the index is unavailable, errors, or finds nothing.
func (s *SQLiteStore) SearchRagDocs(ctx context.Context, query, category string, k int) ([]domain.RagDoc, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = defaultSearchK
	}
	if s.ftsEnabled {
		docs, err := s.searchRagFTS(ctx, query, category, k)
		if err == nil && len(docs) > 0 {
			return docs, nil
		}
	}
	return s.searchRagLike(ctx, query, category, k)
}

func (s *SQLiteStore) searchRagFTS(ctx context.Context, query, category string, k int) ([]domain.RagDoc, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("empty fts query")
	}
	q := `SELECT d.doc_id, d.category, d.title, d.content, d.meta_json, d.created_at
		FROM rag_fts
		JOIN rag_docs d ON d.doc_id = rag_fts.doc_id
		WHERE rag_fts MATCH ?`
	args := []interface{}{ftsQuery}
	if category != "" {
		q += ` AND d.category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	defer rows.Close()
	return scanRagDocs(rows)
}

// searchRagLike ranks documents by how many query terms they contain, then
// by recency. A term counts once whether it hits the title or the content.
func (s *SQLiteStore) searchRagLike(ctx context.Context, query, category string, k int) ([]domain.RagDoc, error) {
	terms := tokenizeSearchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT doc_id, category, title, content, meta_json, created_at FROM (
		SELECT doc_id, category, title, content, meta_json, created_at, (`)
	args := make([]interface{}, 0, 2*len(terms)+2)
	for idx, term := range terms {
		if idx > 0 {
			b.WriteString(" + ")
		}
		b.WriteString("(CASE WHEN LOWER(title) LIKE ? OR LOWER(content) LIKE ? THEN 1 ELSE 0 END)")
		args = append(args, "%"+term+"%", "%"+term+"%")
	}
	b.WriteString(") AS hits FROM rag_docs")
	if category != "" {
		b.WriteString(" WHERE category = ?")
		args = append(args, category)
	}
	b.WriteString(") WHERE hits > 0 ORDER BY hits DESC, created_at DESC LIMIT ?")
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("like query failed: %w", err)
	}
	defer rows.Close()
	return scanRagDocs(rows)
}

func scanRagDocs(rows *sql.Rows) ([]domain.RagDoc, error) {
	var docs []domain.RagDoc
	for rows.Next() {
		var doc domain.RagDoc
		var meta sql.NullString
		if err := rows.Scan(&doc.DocID, &doc.Category, &doc.Title, &doc.Content, &meta, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if meta.Valid {
			doc.Metadata = []byte(meta.String)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
