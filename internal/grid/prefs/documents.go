package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/admingrid/internal/platform/db"
)

// PGDocuments stores preference documents in user_preferences.document (jsonb).
type PGDocuments struct {
	pool *pgxpool.Pool
}

// NewPGDocuments constructs the repository.
func NewPGDocuments(pool *pgxpool.Pool) *PGDocuments {
	return &PGDocuments{pool: pool}
}

const (
	selectDocument       = `SELECT document FROM user_preferences WHERE user_id = $1`
	selectDocumentLocked = selectDocument + ` FOR UPDATE`
	upsertDocument       = `INSERT INTO user_preferences (user_id, document, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`
)

// Document returns the user's document, empty when none was saved.
func (r *PGDocuments) Document(ctx context.Context, userID int64) (map[string]any, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, selectDocument, userID))
	if err != nil {
		return nil, fmt.Errorf("prefs: select document: %w", err)
	}
	return doc, nil
}

// UpdateDocument runs fn over the locked document and writes the result back.
func (r *PGDocuments) UpdateDocument(ctx context.Context, userID int64, fn func(doc map[string]any) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		doc, err := scanDocument(tx.QueryRow(ctx, selectDocumentLocked, userID))
		if err != nil {
			return fmt.Errorf("prefs: lock document: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upsertDocument, userID, doc); err != nil {
			return fmt.Errorf("prefs: upsert document: %w", err)
		}
		return nil
	})
}

func scanDocument(row pgx.Row) (map[string]any, error) {
	var doc map[string]any
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
