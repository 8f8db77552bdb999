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

func (d Datasource) CreateOutboxItem(ctx context.Context, item *model.NotificationOutboxItem) (*model.NotificationOutboxItem, error) {
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal outbox payload", err)
	}

	item.ID = model.GenerateUUIDWithSuffix("obx")
	item.Status = model.OutboxPending
	item.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO notification_outbox (outbox_id, user_id, notification_type, payload, status, retries, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`, item.ID, item.UserID, item.NotificationType, payloadJSON, item.Status, item.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create outbox item", err)
	}

	return item, nil
}

// SelectPendingOutboxItems returns deliverable items oldest first. SENDING
// rows belong to a live worker and are skipped; ones stranded by a crash
// are released by ReapStaleOutboxItems before selection runs.
func (d Datasource) SelectPendingOutboxItems(ctx context.Context, maxRetries, limit int) ([]*model.NotificationOutboxItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT outbox_id, user_id, notification_type, payload, status, retries, last_error, sent_at, created_at
		FROM notification_outbox
		WHERE status IN ('PENDING', 'FAILED') AND retries < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pending outbox items", err)
	}
	defer rows.Close()

	return scanOutboxItems(rows)
}

// ClaimOutboxItem flips one deliverable item to SENDING and stamps the
// lease. The status predicate inside the UPDATE makes the claim atomic: a
// concurrent worker updating the same row sees zero rows affected and
// moves on.
func (d Datasource) ClaimOutboxItem(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'SENDING', locked_at = $2
		WHERE outbox_id = $1 AND status IN ('PENDING', 'FAILED')
	`, id, now)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim outbox item", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read claim result", err)
	}
	return affected == 1, nil
}

// ReapStaleOutboxItems releases SENDING rows whose lease predates cutoff,
// returning them to FAILED with the retry counter bumped: an item whose
// delivery keeps crashing the worker still converges on exhaustion rather
// than looping forever.
func (d Datasource) ReapStaleOutboxItems(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'FAILED', retries = retries + 1, last_error = 'lease expired', locked_at = NULL
		WHERE status = 'SENDING' AND locked_at IS NOT NULL AND locked_at < $1
	`, cutoff)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reap stale outbox items", err)
	}
	return result.RowsAffected()
}

func (d Datasource) MarkOutboxItemSent(ctx context.Context, id string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'SENT', last_error = NULL, locked_at = NULL, sent_at = $2
		WHERE outbox_id = $1
	`, id, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark outbox item sent", err)
	}
	return nil
}

func (d Datasource) MarkOutboxItemFailed(ctx context.Context, id string, lastError string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'FAILED', retries = retries + 1, last_error = $2, locked_at = NULL
		WHERE outbox_id = $1
	`, id, model.TruncateError(lastError))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark outbox item failed", err)
	}
	return nil
}

func (d Datasource) ListExhaustedOutboxItems(ctx context.Context, maxRetries, limit int) ([]*model.NotificationOutboxItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT outbox_id, user_id, notification_type, payload, status, retries, last_error, sent_at, created_at
		FROM notification_outbox
		WHERE status = 'FAILED' AND retries >= $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve exhausted outbox items", err)
	}
	defer rows.Close()

	return scanOutboxItems(rows)
}

// CreateNotification inserts the user-facing feed row. The source event ID
// carries the outbox item's identity, so a redelivered item lands on the
// conflict arm and the user still sees exactly one notification.
func (d Datasource) CreateNotification(ctx context.Context, notification *model.Notification) (bool, error) {
	payloadJSON, err := json.Marshal(notification.Payload)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal notification payload", err)
	}

	notification.ID = model.GenerateUUIDWithSuffix("ntf")
	notification.CreatedAt = time.Now()

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO notifications (notification_id, user_id, type, title, body, cta_url, cta_label, priority, from_user_id, organization_id, event_id, source_event_id, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, 0), NULLIF($11, 0), $12, $13, FALSE, $14)
		ON CONFLICT (source_event_id) DO NOTHING
	`, notification.ID, notification.UserID, notification.Type, notification.Title, notification.Body,
		notification.CtaUrl, notification.CtaLabel, notification.Priority, notification.FromUserID,
		notification.OrganizationID, notification.EventID, notification.SourceEventID, payloadJSON, notification.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return false, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create notification", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read insert result", err)
	}
	return affected == 1, nil
}

func scanOutboxItems(rows *sql.Rows) ([]*model.NotificationOutboxItem, error) {
	items := []*model.NotificationOutboxItem{}
	for rows.Next() {
		item := model.NotificationOutboxItem{}
		var payloadJSON []byte
		var lastError sql.NullString
		var sentAt sql.NullTime

		err := rows.Scan(&item.ID, &item.UserID, &item.NotificationType, &payloadJSON,
			&item.Status, &item.Retries, &lastError, &sentAt, &item.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan outbox data", err)
		}

		if err := json.Unmarshal(payloadJSON, &item.Payload); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal outbox payload", err)
		}
		item.LastError = lastError.String
		if sentAt.Valid {
			item.SentAt = &sentAt.Time
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over outbox items", err)
	}
	return items, nil
}
