// Package store defines the storage interface and implementations.
// The SQLite full-text index needs the sqlite_fts5 build tag; without it
// RagDoc search uses the ranked LIKE fallback.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// Message operations. AppendMessage assigns Seq.
	AppendMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Task result operations. Lists are newest first.
	SaveTaskResult(ctx context.Context, result *domain.TaskResult) error
	ListTaskResults(ctx context.Context, sessionID string, filter domain.TaskResultFilter) ([]domain.TaskResult, error)
	LatestTaskResult(ctx context.Context, sessionID string, taskType domain.TaskID) (*domain.TaskResult, error)

	// RAG document operations
	AddRagDoc(ctx context.Context, doc *domain.RagDoc) error
	SearchRagDocs(ctx context.Context, query, category string, k int) ([]domain.RagDoc, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Open picks an implementation from the connection string.
// postgres:// and postgresql:// select Postgres; anything else is a SQLite DSN.
func Open(ctx context.Context, dsn string) (Store, error) {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return NewPostgresStore(ctx, dsn)
	}
	return NewSQLiteStore(sqliteDSN(dsn))
}

// sqliteDSN accepts SQLAlchemy style sqlite:///path URLs as well as plain DSNs.
func sqliteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite:///") {
		return strings.TrimPrefix(dsn, "sqlite:///")
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	return dsn
}

const defaultSearchK = 5

// ragTitle derives a title from metadata title/product_name, else the first content line.
func ragTitle(doc *domain.RagDoc) string {
	if doc.Title != "" {
		return doc.Title
	}
	if len(doc.Metadata) > 0 {
		var meta map[string]interface{}
		if err := json.Unmarshal(doc.Metadata, &meta); err == nil {
			for _, key := range []string{"title", "product_name"} {
				if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
		}
	}
	first := strings.TrimSpace(strings.SplitN(doc.Content, "\n", 2)[0])
	if r := []rune(first); len(r) > 80 {
		first = string(r[:80])
	}
	return first
}

// buildFTSQuery quotes each term as a prefix query joined with AND.
func buildFTSQuery(raw string) string {
	parts := tokenizeSearchTerms(raw)
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, `"`, "")
		if p == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf(`"%s"*`, p))
	}
	return strings.Join(quoted, " AND ")
}

func tokenizeSearchTerms(raw string) []string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "`\"'.,:;!?()[]{}<>|")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
