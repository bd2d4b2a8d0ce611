package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"corag/internal/domain/entities"
)

// SQLiteIndex is a persistent single-node index. Similarity search is a
// brute-force scan over the tenant's partition; fine for the corpus sizes
// this service holds, and every query is parameterized so tenant-supplied
// document names can never alter query structure.
type SQLiteIndex struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteIndex opens (or creates) the database under dataPath.
func NewSQLiteIndex(dataPath string) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, "chunks.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		document_name TEXT NOT NULL,
		page INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tenant ON chunks(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_tenant_document ON chunks(tenant_id, document_name);
	CREATE INDEX IF NOT EXISTS idx_expires ON chunks(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes records, replacing any prior record with the same ID. All
// records of one call land in a single transaction.
func (s *SQLiteIndex) Upsert(ctx context.Context, records []entities.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, tenant_id, document_name, page, chunk_index, content, embedding, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		embeddingJSON, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.ID,
			rec.TenantID,
			rec.DocumentName,
			rec.Page,
			rec.ChunkIndex,
			rec.Content,
			embeddingJSON,
			rec.CreatedAt.UnixNano(),
			rec.ExpiresAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}
	return tx.Commit()
}

// Query scans the tenant's visible records and ranks them by cosine
// similarity, ties broken by ascending ID.
func (s *SQLiteIndex) Query(ctx context.Context, tenantID string, vector []float32, limit int, minScore float64, now time.Time) ([]entities.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_name, page, chunk_index, content, embedding, created_at, expires_at
		FROM chunks
		WHERE tenant_id = ? AND expires_at > ?
	`, tenantID, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []entities.ScoredChunk
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		score := cosineSimilarity(vector, rec.Embedding)
		if score < minScore {
			continue
		}
		results = append(results, entities.ScoredChunk{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListDocuments returns the distinct visible document names for a tenant.
func (s *SQLiteIndex) ListDocuments(ctx context.Context, tenantID string, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT document_name FROM chunks
		WHERE tenant_id = ? AND expires_at > ?
		ORDER BY document_name
	`, tenantID, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning document name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteDocument removes all records for the tenant and document name.
func (s *SQLiteIndex) DeleteDocument(ctx context.Context, tenantID, documentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE tenant_id = ? AND document_name = ?",
		tenantID, documentName)
	return err
}

// DeleteTenant removes all records for the tenant.
func (s *SQLiteIndex) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE tenant_id = ?", tenantID)
	return err
}

// PurgeExpired deletes records past their expiry, scoped to one tenant or
// all, and reports how many were removed.
func (s *SQLiteIndex) PurgeExpired(ctx context.Context, tenantID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res sql.Result
		err error
	)
	if tenantID == "" {
		res, err = s.db.ExecContext(ctx, "DELETE FROM chunks WHERE expires_at <= ?", now.UnixNano())
	} else {
		res, err = s.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE tenant_id = ? AND expires_at <= ?",
			tenantID, now.UnixNano())
	}
	if err != nil {
		return 0, fmt.Errorf("purging expired chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (entities.ChunkRecord, error) {
	var (
		rec           entities.ChunkRecord
		embeddingJSON []byte
		createdAt     int64
		expiresAt     int64
	)
	err := rows.Scan(&rec.ID, &rec.TenantID, &rec.DocumentName, &rec.Page,
		&rec.ChunkIndex, &rec.Content, &embeddingJSON, &createdAt, &expiresAt)
	if err != nil {
		return rec, fmt.Errorf("scanning row: %w", err)
	}
	if err := json.Unmarshal(embeddingJSON, &rec.Embedding); err != nil {
		return rec, fmt.Errorf("decoding embedding: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt)
	rec.ExpiresAt = time.Unix(0, expiresAt)
	return rec, nil
}
