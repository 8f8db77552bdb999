package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

// ApplyLedgerUpsert writes one purchase's read model in a single
// transaction: upsert the summary, replace its lines, and issue one
// entitlement per unit. Entitlement inserts use the composite dedupe key
// with DO NOTHING, so a replayed operation recreates lines but issues no
// new entitlements. The returned map counts entitlements actually created
// per ticket type; the caller adjusts sold counters from it, which is what
// keeps the counter flat across replays.
func (d Datasource) ApplyLedgerUpsert(ctx context.Context, upsert *model.LedgerUpsert) (map[int64]int, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	summary := &upsert.Summary

	var summaryID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sale_summaries (payment_intent_id, purchase_id, event_id, user_id, owner_identity_id, promo_code_id, subtotal_cents, discount_cents, platform_fee_cents, currency, fee_mode, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, 0), $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $13)
		ON CONFLICT (payment_intent_id) DO UPDATE SET
			purchase_id = EXCLUDED.purchase_id,
			event_id = EXCLUDED.event_id,
			user_id = EXCLUDED.user_id,
			owner_identity_id = EXCLUDED.owner_identity_id,
			promo_code_id = EXCLUDED.promo_code_id,
			subtotal_cents = EXCLUDED.subtotal_cents,
			discount_cents = EXCLUDED.discount_cents,
			platform_fee_cents = EXCLUDED.platform_fee_cents,
			currency = EXCLUDED.currency,
			fee_mode = EXCLUDED.fee_mode,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, summary.PaymentIntentID, summary.PurchaseID, summary.EventID, summary.UserID, summary.OwnerIdentityID,
		summary.PromoCodeID, summary.SubtotalCents, summary.DiscountCents, summary.PlatformFeeCents,
		summary.Currency, summary.FeeMode, summary.Status, now).Scan(&summaryID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert sale summary", err)
	}
	summary.ID = summaryID

	// Lines carry no external identity, so replace rather than reconcile.
	_, err = tx.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_summary_id = $1`, summaryID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear sale lines", err)
	}

	created := map[int64]int{}
	for i := range upsert.Lines {
		line := &upsert.Lines[i].Line
		line.SaleSummaryID = summaryID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO sale_lines (sale_summary_id, event_id, ticket_type_id, promo_code_id, quantity, unit_price_cents, discount_per_unit_cents, gross_cents, net_cents, platform_fee_cents)
			VALUES ($1, NULLIF($2, 0), $3, NULLIF($4, 0), $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, summaryID, line.EventID, line.TicketTypeID, line.PromoCodeID, line.Quantity,
			line.UnitPriceCents, line.DiscountPerUnitCents, line.GrossCents, line.NetCents, line.PlatformFeeCents).Scan(&line.ID)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert sale line", err)
		}

		for j := range upsert.Lines[i].Entitlements {
			ent := &upsert.Lines[i].Entitlements[j]
			ent.SaleLineID = line.ID

			result, err := tx.ExecContext(ctx, `
				INSERT INTO entitlements (entitlement_id, purchase_id, sale_line_id, line_item_index, owner_key, owner_user_id, owner_identity_id, event_id, ticket_type_id, entitlement_type, status, qr_secret, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0), NULLIF($9, 0), $10, $11, $12, $13, $13)
				ON CONFLICT (purchase_id, ticket_type_id, line_item_index, owner_key, entitlement_type) DO NOTHING
			`, ent.ID, ent.PurchaseID, ent.SaleLineID, ent.LineItemIndex, ent.OwnerKey, ent.OwnerUserID,
				ent.OwnerIdentityID, ent.EventID, ent.TicketTypeID, ent.Type, ent.Status, ent.QrSecret, now)
			if err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert entitlement", err)
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read entitlement insert result", err)
			}
			if affected == 1 {
				created[ent.TicketTypeID]++
			}
		}
	}

	for ticketTypeID, count := range created {
		_, err = tx.ExecContext(ctx, `
			UPDATE ticket_types SET sold_quantity = sold_quantity + $2 WHERE id = $1
		`, ticketTypeID, count)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update sold quantity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit ledger upsert", err)
	}
	return created, nil
}

const saleSummaryColumns = `
	id, payment_intent_id, purchase_id, event_id, user_id, owner_identity_id, promo_code_id,
	subtotal_cents, discount_cents, platform_fee_cents, currency, fee_mode, status, dispute_reason,
	created_at, updated_at
`

func (d Datasource) GetSaleSummaryByID(ctx context.Context, id int64) (*model.SaleSummary, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+saleSummaryColumns+`
		FROM sale_summaries
		WHERE id = $1
	`, id)
	return scanSaleSummary(row)
}

func (d Datasource) GetSaleSummaryByPaymentIntent(ctx context.Context, paymentIntentID string) (*model.SaleSummary, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+saleSummaryColumns+`
		FROM sale_summaries
		WHERE payment_intent_id = $1
	`, paymentIntentID)
	return scanSaleSummary(row)
}

func (d Datasource) GetSaleSummaryByPurchase(ctx context.Context, purchaseID string) (*model.SaleSummary, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+saleSummaryColumns+`
		FROM sale_summaries
		WHERE purchase_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, purchaseID)
	return scanSaleSummary(row)
}

func (d Datasource) UpdateSaleStatus(ctx context.Context, paymentIntentID string, status model.SaleStatus, disputeReason string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE sale_summaries
		SET status = $2, dispute_reason = NULLIF($3, ''), updated_at = $4
		WHERE payment_intent_id = $1
	`, paymentIntentID, status, disputeReason, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update sale status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Sale summary not found", nil)
	}
	return nil
}

func (d Datasource) GetSaleLines(ctx context.Context, saleSummaryID int64) ([]model.SaleLine, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, sale_summary_id, event_id, ticket_type_id, promo_code_id, quantity, unit_price_cents, discount_per_unit_cents, gross_cents, net_cents, platform_fee_cents
		FROM sale_lines
		WHERE sale_summary_id = $1
		ORDER BY id ASC
	`, saleSummaryID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sale lines", err)
	}
	defer rows.Close()

	lines := []model.SaleLine{}
	for rows.Next() {
		line := model.SaleLine{}
		var eventID, promoCodeID sql.NullInt64
		err = rows.Scan(&line.ID, &line.SaleSummaryID, &eventID, &line.TicketTypeID, &promoCodeID,
			&line.Quantity, &line.UnitPriceCents, &line.DiscountPerUnitCents, &line.GrossCents, &line.NetCents, &line.PlatformFeeCents)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan sale line data", err)
		}
		line.EventID = eventID.Int64
		line.PromoCodeID = promoCodeID.Int64
		lines = append(lines, line)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over sale lines", err)
	}
	return lines, nil
}

func scanSaleSummary(row *sql.Row) (*model.SaleSummary, error) {
	summary := model.SaleSummary{}
	var eventID, promoCodeID sql.NullInt64
	var userID, ownerIdentityID, feeMode, disputeReason sql.NullString

	err := row.Scan(&summary.ID, &summary.PaymentIntentID, &summary.PurchaseID, &eventID, &userID, &ownerIdentityID,
		&promoCodeID, &summary.SubtotalCents, &summary.DiscountCents, &summary.PlatformFeeCents,
		&summary.Currency, &feeMode, &summary.Status, &disputeReason, &summary.CreatedAt, &summary.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Sale summary not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sale summary", err)
	}

	summary.EventID = eventID.Int64
	summary.PromoCodeID = promoCodeID.Int64
	summary.UserID = userID.String
	summary.OwnerIdentityID = ownerIdentityID.String
	summary.FeeMode = feeMode.String
	summary.DisputeReason = disputeReason.String
	return &summary, nil
}
