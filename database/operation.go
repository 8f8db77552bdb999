package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

const operationColumns = `
	id, operation_type, dedupe_key, status, attempts, payload,
	payment_intent_id, purchase_id, provider_event_id, event_id,
	last_error, locked_at, next_retry_at, created_at, updated_at
`

func (d Datasource) EnqueueOperation(ctx context.Context, op *model.Operation) (*model.Operation, error) {
	payloadJSON, err := json.Marshal(op.Payload)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal operation payload", err)
	}

	op.Status = model.OperationPending
	op.CreatedAt = time.Now()
	op.UpdatedAt = op.CreatedAt

	err = d.Conn.QueryRowContext(ctx, `
		INSERT INTO operations (operation_type, dedupe_key, status, payload, payment_intent_id, purchase_id, provider_event_id, event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0), $9, $10)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id
	`, op.OperationType, op.DedupeKey, op.Status, payloadJSON, op.PaymentIntentID, op.PurchaseID, op.ProviderEventID, op.EventID, op.CreatedAt, op.UpdatedAt).Scan(&op.ID)

	if err == sql.ErrNoRows {
		// Another producer already enqueued this dedupe key.
		return d.GetOperationByDedupeKey(ctx, op.DedupeKey)
	}
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return d.GetOperationByDedupeKey(ctx, op.DedupeKey)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue operation", err)
	}

	return op, nil
}

// SelectClaimableOperations reads candidates only; ClaimOperation decides
// ownership. PENDING rows are claimable outright, FAILED rows once their
// retry timestamp has passed. Rows already holding a lock are skipped.
// Insertion order (id) drives batch order, not created_at, so ties on the
// timestamp cannot reorder a batch.
func (d Datasource) SelectClaimableOperations(ctx context.Context, now time.Time, limit int) ([]*model.Operation, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE locked_at IS NULL
		  AND (status = 'PENDING' OR (status = 'FAILED' AND next_retry_at IS NOT NULL AND next_retry_at <= $1))
		ORDER BY id ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve claimable operations", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// ClaimOperation is the atomic gate between candidate selection and
// execution. The predicate re-checks claimability inside the UPDATE, so
// of two workers racing on the same row exactly one sees a row count of 1.
func (d Datasource) ClaimOperation(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE operations
		SET status = 'RUNNING', attempts = attempts + 1, locked_at = $2, updated_at = $2
		WHERE id = $1
		  AND locked_at IS NULL
		  AND (status = 'PENDING' OR (status = 'FAILED' AND next_retry_at IS NOT NULL AND next_retry_at <= $2))
	`, id, now)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim operation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read claim result", err)
	}
	return affected == 1, nil
}

func (d Datasource) RecordOperationSuccess(ctx context.Context, id int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE operations
		SET status = 'SUCCEEDED', last_error = NULL, locked_at = NULL, next_retry_at = NULL, updated_at = $2
		WHERE id = $1
	`, id, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record operation success", err)
	}
	return checkOneRow(result)
}

func (d Datasource) RecordOperationFailure(ctx context.Context, id int64, lastError string, nextRetryAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE operations
		SET status = 'FAILED', last_error = $2, locked_at = NULL, next_retry_at = $3, updated_at = $4
		WHERE id = $1
	`, id, model.TruncateError(lastError), nextRetryAt, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record operation failure", err)
	}
	return checkOneRow(result)
}

func (d Datasource) DeadLetterOperation(ctx context.Context, id int64, lastError string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE operations
		SET status = 'DEAD_LETTER', last_error = $2, locked_at = NULL, next_retry_at = NULL, updated_at = $3
		WHERE id = $1
	`, id, model.TruncateError(lastError), time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to dead-letter operation", err)
	}
	return checkOneRow(result)
}

// ReapStaleOperations releases RUNNING rows whose lock predates cutoff,
// returning them to FAILED with an immediate retry. A crashed worker
// therefore delays its batch by at most the lease timeout.
func (d Datasource) ReapStaleOperations(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE operations
		SET status = 'FAILED', last_error = 'lease expired', locked_at = NULL, next_retry_at = $2, updated_at = $2
		WHERE status = 'RUNNING' AND locked_at IS NOT NULL AND locked_at < $1
	`, cutoff, time.Now())
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reap stale operations", err)
	}
	return result.RowsAffected()
}

func (d Datasource) GetOperationByID(ctx context.Context, id int64) (*model.Operation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE id = $1
	`, id)

	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Operation not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve operation", err)
	}
	return op, nil
}

func (d Datasource) GetOperationByDedupeKey(ctx context.Context, dedupeKey string) (*model.Operation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE dedupe_key = $1
	`, dedupeKey)

	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Operation not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve operation", err)
	}
	return op, nil
}

func (d Datasource) ListDeadLetterOperations(ctx context.Context, limit, offset int) ([]*model.Operation, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE status = 'DEAD_LETTER'
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve dead-letter operations", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*model.Operation, error) {
	op := model.Operation{}
	var payloadJSON []byte
	var paymentIntentID, purchaseID, providerEventID, lastError sql.NullString
	var eventID sql.NullInt64
	var lockedAt, nextRetryAt sql.NullTime

	err := row.Scan(&op.ID, &op.OperationType, &op.DedupeKey, &op.Status, &op.Attempts, &payloadJSON,
		&paymentIntentID, &purchaseID, &providerEventID, &eventID,
		&lastError, &lockedAt, &nextRetryAt, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payloadJSON, &op.Payload); err != nil {
		return nil, err
	}
	op.PaymentIntentID = paymentIntentID.String
	op.PurchaseID = purchaseID.String
	op.ProviderEventID = providerEventID.String
	op.EventID = eventID.Int64
	op.LastError = lastError.String
	if lockedAt.Valid {
		op.LockedAt = &lockedAt.Time
	}
	if nextRetryAt.Valid {
		op.NextRetryAt = &nextRetryAt.Time
	}
	return &op, nil
}

func scanOperations(rows *sql.Rows) ([]*model.Operation, error) {
	operations := []*model.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan operation data", err)
		}
		operations = append(operations, op)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over operations", err)
	}
	return operations, nil
}

func checkOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Operation not found", nil)
	}
	return nil
}
