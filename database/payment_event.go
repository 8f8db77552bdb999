package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

func (d Datasource) UpsertPaymentEvent(ctx context.Context, event *model.PaymentEvent) error {
	event.UpdatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payment_events (payment_intent_id, purchase_id, event_id, user_id, status, error_message, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, 0), NULLIF($4, ''), $5, NULLIF($6, ''), $7)
		ON CONFLICT (payment_intent_id) DO UPDATE SET
			purchase_id = COALESCE(EXCLUDED.purchase_id, payment_events.purchase_id),
			event_id = COALESCE(EXCLUDED.event_id, payment_events.event_id),
			user_id = COALESCE(EXCLUDED.user_id, payment_events.user_id),
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`, event.PaymentIntentID, event.PurchaseID, event.EventID, event.UserID, event.Status, event.ErrorMessage, event.UpdatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert payment event", err)
	}
	return nil
}

func (d Datasource) GetPaymentEventByIntent(ctx context.Context, paymentIntentID string) (*model.PaymentEvent, error) {
	event := model.PaymentEvent{}
	var purchaseID, userID, errorMessage sql.NullString
	var eventID sql.NullInt64

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, payment_intent_id, purchase_id, event_id, user_id, status, error_message, updated_at
		FROM payment_events
		WHERE payment_intent_id = $1
	`, paymentIntentID)

	err := row.Scan(&event.ID, &event.PaymentIntentID, &purchaseID, &eventID, &userID, &event.Status, &errorMessage, &event.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payment event not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment event", err)
	}

	event.PurchaseID = purchaseID.String
	event.UserID = userID.String
	event.ErrorMessage = errorMessage.String
	event.EventID = eventID.Int64
	return &event, nil
}
