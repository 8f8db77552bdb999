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

// QueueEmail records an email exactly once per dedupe key. False means
// the key is already present and the caller should treat the send as done.
func (d Datasource) QueueEmail(ctx context.Context, entry *model.EmailOutboxEntry) (bool, error) {
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal email payload", err)
	}

	entry.Status = model.OutboxPending
	entry.CreatedAt = time.Now()

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO email_outbox (dedupe_key, template_key, recipient, purchase_id, entitlement_id, payload, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (dedupe_key) DO NOTHING
	`, entry.DedupeKey, entry.TemplateKey, entry.Recipient, entry.PurchaseID, entry.EntitlementID, payloadJSON, entry.Status, entry.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return false, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to queue email", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read insert result", err)
	}
	return affected == 1, nil
}

func (d Datasource) GetEmailOutboxEntry(ctx context.Context, dedupeKey string) (*model.EmailOutboxEntry, error) {
	entry := model.EmailOutboxEntry{}
	var purchaseID, entitlementID, errorCode sql.NullString
	var payloadJSON []byte
	var sentAt sql.NullTime

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, dedupe_key, template_key, recipient, purchase_id, entitlement_id, payload, status, error_code, sent_at, created_at
		FROM email_outbox
		WHERE dedupe_key = $1
	`, dedupeKey)

	err := row.Scan(&entry.ID, &entry.DedupeKey, &entry.TemplateKey, &entry.Recipient, &purchaseID,
		&entitlementID, &payloadJSON, &entry.Status, &errorCode, &sentAt, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Email outbox entry not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve email outbox entry", err)
	}

	if err := json.Unmarshal(payloadJSON, &entry.Payload); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal email payload", err)
	}
	entry.PurchaseID = purchaseID.String
	entry.EntitlementID = entitlementID.String
	entry.ErrorCode = errorCode.String
	if sentAt.Valid {
		entry.SentAt = &sentAt.Time
	}
	return &entry, nil
}

func (d Datasource) MarkEmailSent(ctx context.Context, dedupeKey string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE email_outbox
		SET status = 'SENT', error_code = NULL, sent_at = $2
		WHERE dedupe_key = $1
	`, dedupeKey, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark email sent", err)
	}
	return nil
}

func (d Datasource) MarkEmailFailed(ctx context.Context, dedupeKey string, errorCode string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE email_outbox
		SET status = 'FAILED', error_code = $2
		WHERE dedupe_key = $1
	`, dedupeKey, model.TruncateError(errorCode))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark email failed", err)
	}
	return nil
}

func (d Datasource) UpsertEmailIdentity(ctx context.Context, email, userID string) (*model.EmailIdentity, error) {
	identity := model.EmailIdentity{
		ID:              model.GenerateUUIDWithSuffix("idn"),
		EmailNormalized: model.NormalizeEmail(email),
		UserID:          userID,
		CreatedAt:       time.Now(),
	}

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO email_identities (identity_id, email_normalized, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email_normalized) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING identity_id
	`, identity.ID, identity.EmailNormalized, identity.UserID, identity.CreatedAt).Scan(&identity.ID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert email identity", err)
	}
	return &identity, nil
}

func (d Datasource) GetEmailIdentity(ctx context.Context, email string) (*model.EmailIdentity, error) {
	identity := model.EmailIdentity{}
	var verifiedAt sql.NullTime

	row := d.Conn.QueryRowContext(ctx, `
		SELECT identity_id, email_normalized, user_id, verified_at, created_at
		FROM email_identities
		WHERE email_normalized = $1
	`, model.NormalizeEmail(email))

	err := row.Scan(&identity.ID, &identity.EmailNormalized, &identity.UserID, &verifiedAt, &identity.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Email identity not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve email identity", err)
	}

	if verifiedAt.Valid {
		identity.VerifiedAt = &verifiedAt.Time
	}
	return &identity, nil
}
