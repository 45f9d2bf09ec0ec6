package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"overdub/internal/services"
)

// Balance is a user's account snapshot. Pending credits are reserved by jobs
// that have not yet entered cloning.
type Balance struct {
	UID       string
	Credits   int
	Pending   int
	UpdatedAt time.Time
}

// Available returns the credits not held by any reservation.
func (b Balance) Available() int {
	return b.Credits - b.Pending
}

// Reservation is a hold placed for one job.
type Reservation struct {
	JobID     string
	UID       string
	Amount    int
	Confirmed bool
	CreatedAt time.Time
}

// Ledger manages credit accounts and per-job reservations. It shares the
// jobs database so that holds and job state move under one WAL.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an open database handle.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Grant adds credits to a user's account, creating it on first use.
func (l *Ledger) Grant(ctx context.Context, uid string, amount int) error {
	if uid == "" {
		return services.Wrap(services.ErrValidation, "", "grant credits", "uid is empty", nil)
	}
	if amount <= 0 {
		return services.Wrap(services.ErrValidation, "", "grant credits",
			fmt.Sprintf("amount must be positive, got %d", amount), nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO credit_accounts (uid, credits, pending_credits, updated_at)
         VALUES (?, ?, 0, ?)
         ON CONFLICT(uid) DO UPDATE SET credits = credits + excluded.credits, updated_at = excluded.updated_at`,
		uid, amount, now,
	)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

// Balance returns the account snapshot for a user. Unknown users have a zero
// balance rather than an error.
func (l *Ledger) Balance(ctx context.Context, uid string) (Balance, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT uid, credits, pending_credits, updated_at FROM credit_accounts WHERE uid = ?`, uid)
	var (
		b         Balance
		updatedAt string
	)
	err := row.Scan(&b.UID, &b.Credits, &b.Pending, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Balance{UID: uid}, nil
	}
	if err != nil {
		return Balance{}, fmt.Errorf("query balance: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		b.UpdatedAt = ts
	}
	return b, nil
}

// Reserve places a hold of amount credits for the given job. The hold counts
// against the available balance immediately but is not yet a debit. Reserving
// twice for the same job is a conflict.
func (l *Ledger) Reserve(ctx context.Context, uid, jobID string, amount int) error {
	if amount <= 0 {
		return services.Wrap(services.ErrValidation, "", "reserve credits",
			fmt.Sprintf("amount must be positive, got %d", amount), nil)
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback()

	var credits, pending int
	err = tx.QueryRowContext(ctx,
		`SELECT credits, pending_credits FROM credit_accounts WHERE uid = ?`, uid,
	).Scan(&credits, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrInsufficientCredits, "", "reserve credits",
			fmt.Sprintf("user %s has no credit account", uid), nil)
	}
	if err != nil {
		return fmt.Errorf("query account: %w", err)
	}
	if credits-pending < amount {
		return services.Wrap(services.ErrInsufficientCredits, "", "reserve credits",
			fmt.Sprintf("need %d credits, %d available", amount, credits-pending), nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_reservations (job_id, uid, amount, confirmed, created_at) VALUES (?, ?, ?, 0, ?)`,
		jobID, uid, amount, now,
	); err != nil {
		return services.Wrap(services.ErrConflict, "", "reserve credits",
			fmt.Sprintf("job %s already holds a reservation", jobID), err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts SET pending_credits = pending_credits + ?, updated_at = ? WHERE uid = ?`,
		amount, now, uid,
	); err != nil {
		return fmt.Errorf("update pending: %w", err)
	}
	return tx.Commit()
}

// Confirm converts a job's hold into a debit. This is the single point where
// credits actually leave the account; it happens once, when cloning begins.
func (l *Ledger) Confirm(ctx context.Context, jobID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback()

	res, err := l.reservation(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if res.Confirmed {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts
         SET credits = credits - ?, pending_credits = pending_credits - ?, updated_at = ?
         WHERE uid = ?`,
		res.Amount, res.Amount, now, res.UID,
	); err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE credit_reservations SET confirmed = 1 WHERE job_id = ?`, jobID,
	); err != nil {
		return fmt.Errorf("confirm reservation: %w", err)
	}
	return tx.Commit()
}

// Release drops a job's hold without debiting. Confirmed reservations are
// removed but the debit stands; releasing a job with no hold is a no-op.
func (l *Ledger) Release(ctx context.Context, jobID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin release: %w", err)
	}
	defer tx.Rollback()

	res, err := l.reservation(ctx, tx, jobID)
	if errors.Is(err, services.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if !res.Confirmed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE credit_accounts SET pending_credits = pending_credits - ?, updated_at = ? WHERE uid = ?`,
			res.Amount, now, res.UID,
		); err != nil {
			return fmt.Errorf("release pending: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM credit_reservations WHERE job_id = ?`, jobID,
	); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return tx.Commit()
}

// ReservationFor returns the hold currently placed for a job, if any.
func (l *Ledger) ReservationFor(ctx context.Context, jobID string) (*Reservation, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT job_id, uid, amount, confirmed, created_at FROM credit_reservations WHERE job_id = ?`, jobID)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// StaleReservations lists unconfirmed holds older than cutoff, for the
// expiry sweep to release.
func (l *Ledger) StaleReservations(ctx context.Context, cutoff time.Time) ([]Reservation, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT job_id, uid, amount, confirmed, created_at FROM credit_reservations
         WHERE confirmed = 0 AND created_at < ? ORDER BY created_at`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query stale reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (l *Ledger) reservation(ctx context.Context, tx *sql.Tx, jobID string) (*Reservation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT job_id, uid, amount, confirmed, created_at FROM credit_reservations WHERE job_id = ?`, jobID)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "lookup reservation",
			fmt.Sprintf("job %s has no reservation", jobID), nil)
	}
	return res, err
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var (
		res       Reservation
		confirmed int
		createdAt string
	)
	if err := row.Scan(&res.JobID, &res.UID, &res.Amount, &confirmed, &createdAt); err != nil {
		return nil, err
	}
	res.Confirmed = confirmed != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		res.CreatedAt = ts
	}
	return &res, nil
}
