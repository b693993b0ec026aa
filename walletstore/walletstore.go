// Package walletstore implements the wallet's local persistence (spec
// §4.10, ambient): a SQLite database via modernc.org/sqlite, the
// teacher's own choice for a pure-Go, cgo-free embedded store.
package walletstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/ecashutil"
	"github.com/chronocoders/ecash/ledger"
	"github.com/chronocoders/ecash/token"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemWalletStore)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token_json TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('available','spent','pending')),
	created_at DATETIME NOT NULL,
	spent_at DATETIME NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	amount INTEGER NOT NULL,
	denomination INTEGER NOT NULL,
	token_count INTEGER NOT NULL,
	institution_id TEXT NOT NULL,
	key_id TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NULL,
	created_at DATETIME NOT NULL
);
`

// Status values for a stored token's lifecycle (spec §3).
const (
	StatusAvailable = "available"
	StatusSpent     = "spent"
	StatusPending   = "pending"
)

// StoredToken pairs a Token with its local lifecycle status.
type StoredToken struct {
	ID      int64
	Token   token.Token
	Status  string
	SpentAt *time.Time
}

// Store wraps the wallet's local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema. Per spec §5, writes are serialized: the teacher
// serializes writes to its embedded store the same way, so the write
// connection pool here is capped at one.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ecashutil.Wrap(err, "walletstore: opening %s", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, ecashutil.Wrap(err, "walletstore: applying schema")
	}

	log.Infof("walletstore: opened %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAvailable persists a freshly withdrawn token as available.
func (s *Store) PutAvailable(ctx context.Context, tok token.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return ecashutil.Wrap(err, "walletstore: marshaling token")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tokens (token_json, status, created_at) VALUES (?, ?, ?)`,
		string(raw), StatusAvailable, time.Now().UTC(),
	)
	if err != nil {
		return ecashutil.Wrap(err, "walletstore: inserting token")
	}
	return nil
}

// Available returns every token currently marked available.
func (s *Store) Available(ctx context.Context) ([]StoredToken, error) {
	return s.byStatus(ctx, StatusAvailable)
}

// Balance sums the denominations of every available token.
func (s *Store) Balance(ctx context.Context) (uint64, error) {
	tokens, err := s.Available(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, st := range tokens {
		total += st.Token.Denomination
	}
	return total, nil
}

func (s *Store) byStatus(ctx context.Context, status string) ([]StoredToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token_json, status, spent_at FROM tokens WHERE status = ? ORDER BY id`, status,
	)
	if err != nil {
		return nil, ecashutil.Wrap(err, "walletstore: querying tokens")
	}
	defer rows.Close()

	var out []StoredToken
	for rows.Next() {
		var (
			id        int64
			tokenJSON string
			st        string
			spentAt   sql.NullTime
		)
		if err := rows.Scan(&id, &tokenJSON, &st, &spentAt); err != nil {
			return nil, ecashutil.Wrap(err, "walletstore: scanning token row")
		}

		var tok token.Token
		if err := json.Unmarshal([]byte(tokenJSON), &tok); err != nil {
			return nil, ecashutil.Wrap(err, "walletstore: unmarshaling stored token")
		}

		stored := StoredToken{ID: id, Token: tok, Status: st}
		if spentAt.Valid {
			stored.SpentAt = &spentAt.Time
		}
		out = append(out, stored)
	}
	return out, rows.Err()
}

// MarkSpent marks every given token id spent inside a single transaction,
// so a partially-applied redeem response can never leave the local store
// inconsistent (spec §4.10/§5).
func (s *Store) MarkSpent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ecashutil.Wrap(err, "walletstore: beginning mark-spent transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tokens SET status = ?, spent_at = ? WHERE id = ?`,
			StatusSpent, now, id,
		); err != nil {
			return ecashutil.Wrap(err, "walletstore: marking token %d spent", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return ecashutil.Wrap(err, "walletstore: committing mark-spent transaction")
	}
	return nil
}

// AppendTransaction records a local audit entry mirroring the server-side
// transaction log shape (spec §3).
func (s *Store) AppendTransaction(ctx context.Context, entry ledger.TransactionEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (kind, amount, denomination, token_count, institution_id, key_id, status, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Kind, entry.Amount, entry.Denomination, entry.TokenCount,
		entry.InstitutionID, entry.KeyID, entry.Status, entry.ErrorMessage, time.Now().UTC(),
	)
	if err != nil {
		return ecashutil.Wrap(err, "walletstore: appending transaction log entry")
	}
	return nil
}
