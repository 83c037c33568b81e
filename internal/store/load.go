package store

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

// UpsertOutcome reports what an upsert did.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
	UpsertFailed
)

// LoadResult summarizes one batch load.
type LoadResult struct {
	Loaded  int
	Failed  int
	Skipped int
}

const insertQuery = `
	INSERT INTO transactions (
		id, date, phone, amount, category, status, description,
		sender, recipient, parsed_at, cleaned_at, categorized_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateQuery = `
	UPDATE transactions SET
		date = ?, phone = ?, amount = ?, category = ?, status = ?,
		description = ?, sender = ?, recipient = ?, parsed_at = ?,
		cleaned_at = ?, categorized_at = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

// LoadBatch applies an upsert per transaction inside one SQL transaction.
// A per-record failure increments Failed and the batch continues; the commit
// happens once at the end. The whole batch rolls back only when the storage
// layer itself fails, which is returned as an error distinct from individual
// record rejection.
func (s *Store) LoadBatch(txs []model.Transaction, runID string) (LoadResult, error) {
	var result LoadResult
	if len(txs) == 0 {
		s.logger.Warnw("no transactions to load", "run_id", runID)
		return result, nil
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return result, errors.Wrap(err, "beginning load transaction")
	}

	for _, tx := range txs {
		outcome, err := upsertIn(dbTx, tx, s)
		if err != nil {
			// Storage-level fault: abandon the batch and roll everything back.
			_ = dbTx.Rollback()
			return LoadResult{}, errors.Wrapf(err, "loading transaction %s", tx.ID)
		}
		switch outcome {
		case UpsertInserted, UpsertUpdated:
			result.Loaded++
		case UpsertFailed:
			result.Failed++
		}
	}

	if err := dbTx.Commit(); err != nil {
		return LoadResult{}, errors.Wrap(err, "committing load transaction")
	}

	s.logger.Infow("batch loaded", "run_id", runID,
		"loaded", result.Loaded, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// Upsert inserts the transaction if its ID is absent, otherwise updates every
// mutable column and stamps updated_at.
func (s *Store) Upsert(tx model.Transaction) (UpsertOutcome, error) {
	dbTx, err := s.db.Begin()
	if err != nil {
		return UpsertFailed, errors.Wrap(err, "beginning upsert transaction")
	}
	outcome, err := upsertIn(dbTx, tx, s)
	if err != nil {
		_ = dbTx.Rollback()
		return UpsertFailed, err
	}
	if err := dbTx.Commit(); err != nil {
		return UpsertFailed, errors.Wrap(err, "committing upsert")
	}
	return outcome, nil
}

// upsertIn performs the existence check and insert-or-update within dbTx.
// A constraint violation on one record reports UpsertFailed without error so
// the surrounding batch can continue; infrastructure errors propagate.
func upsertIn(dbTx *sql.Tx, tx model.Transaction, s *Store) (UpsertOutcome, error) {
	if tx.ID == "" {
		s.logger.Warnw("dropping transaction with empty id")
		return UpsertFailed, nil
	}

	var exists bool
	err := dbTx.QueryRow(`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)`, tx.ID).Scan(&exists)
	if err != nil {
		return UpsertFailed, errors.Wrap(err, "checking existence")
	}

	amount, _ := tx.Amount.Round(2).Float64()

	if exists {
		_, err = dbTx.Exec(updateQuery,
			tx.Date.Format(timeLayout), tx.Phone, amount, tx.Category,
			string(tx.Status), tx.Description, tx.Sender, tx.Recipient,
			formatNullableTime(tx.ParsedAt), formatNullableTime(tx.CleanedAt),
			formatNullableTime(tx.CategorizedAt), tx.ID,
		)
		if err != nil {
			s.logger.Warnw("failed to update transaction", "id", tx.ID, "error", err)
			return UpsertFailed, nil
		}
		return UpsertUpdated, nil
	}

	_, err = dbTx.Exec(insertQuery,
		tx.ID, tx.Date.Format(timeLayout), tx.Phone, amount, tx.Category,
		string(tx.Status), tx.Description, tx.Sender, tx.Recipient,
		formatNullableTime(tx.ParsedAt), formatNullableTime(tx.CleanedAt),
		formatNullableTime(tx.CategorizedAt),
	)
	if err != nil {
		s.logger.Warnw("failed to insert transaction", "id", tx.ID, "error", err)
		return UpsertFailed, nil
	}
	return UpsertInserted, nil
}

func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(timeLayout)
}
