// Package ledger implements the durable, authoritative redemption record
// (spec §4.7, component C8): persisted spent tokens and an append-only
// transaction log. Backed by Postgres via jackc/pgx/v4's stdlib driver, a
// direct teacher dependency.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" database/sql driver

	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/ecashutil"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemLedger)

// Record is a persisted Spent Record (spec §3).
type Record struct {
	SerialHex    string
	Denomination uint64
	Currency     string
	RedeemedAt   time.Time
	MerchantID   *string
}

// TransactionKind is the kind of a TransactionEntry (spec §3).
type TransactionKind string

const (
	TransactionWithdraw TransactionKind = "withdraw"
	TransactionRedeem   TransactionKind = "redeem"
)

// TransactionEntry is an append-only audit record (spec §3).
type TransactionEntry struct {
	Kind          TransactionKind
	Amount        uint64
	Denomination  uint64
	TokenCount    int
	InstitutionID string
	KeyID         string
	Status        string
	ErrorMessage  *string
}

// Ledger is the contract spec §4.7 describes. redemption.Coordinator
// depends on this interface so tests can substitute an in-memory fake.
type Ledger interface {
	HasSpent(ctx context.Context, serialHex string) (bool, error)
	RecordSpent(ctx context.Context, serialBytes []byte, serialHex string, denomination uint64, currency string, merchantID *string) (*Record, error)
	AppendTransaction(ctx context.Context, entry TransactionEntry) error
	Health(ctx context.Context) error
}

// PostgresLedger is the Ledger implementation backed by Postgres.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger wraps an already-open *sql.DB (opened with driver name
// "pgx" against dataSourceName, see cmd/ecash-issuerd).
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// HasSpent implements Ledger.HasSpent (spec §4.7).
func (l *PostgresLedger) HasSpent(ctx context.Context, serialHex string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tokens WHERE serial_hex = $1)`, serialHex,
	).Scan(&exists)
	if err != nil {
		return false, ecashutil.Wrap(err, "ledger: checking serial")
	}
	return exists, nil
}

// RecordSpent implements Ledger.RecordSpent (spec §4.7): inserts the Spent
// Record, mapping a unique-constraint violation on serial_hex to
// ErrTokenAlreadySpent per spec §4.7/§4.8 step 6, and everything else to an
// internal error.
func (l *PostgresLedger) RecordSpent(ctx context.Context, serialBytes []byte, serialHex string,
	denomination uint64, currency string, merchantID *string) (*Record, error) {

	rec := &Record{
		SerialHex:    serialHex,
		Denomination: denomination,
		Currency:     currency,
		RedeemedAt:   time.Now().UTC(),
		MerchantID:   merchantID,
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO tokens (serial_hex, denomination, currency, redeemed_at, merchant_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.SerialHex, rec.Denomination, rec.Currency, rec.RedeemedAt, rec.MerchantID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ecashutil.ErrTokenAlreadySpent
		}
		return nil, ecashutil.Wrap(err, "ledger: recording spent token %s", serialHex)
	}

	return rec, nil
}

// AppendTransaction implements Ledger.AppendTransaction. Failures here are
// logged and swallowed by the caller (redemption.Coordinator), per spec
// §4.7/§7 — an audit-log write failing must never fail the redemption
// itself.
func (l *PostgresLedger) AppendTransaction(ctx context.Context, entry TransactionEntry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (kind, amount, denomination, token_count, institution_id, key_id, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.Kind, entry.Amount, entry.Denomination, entry.TokenCount,
		entry.InstitutionID, entry.KeyID, entry.Status, entry.ErrorMessage,
	)
	if err != nil {
		return ecashutil.Wrap(err, "ledger: appending transaction log entry")
	}
	return nil
}

// Health implements Ledger.Health via a trivial round trip.
func (l *PostgresLedger) Health(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return ecashutil.Wrap(err, "ledger: postgres unreachable")
	}
	return nil
}
