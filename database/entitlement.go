package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

func (d Datasource) GetEntitlementsByPurchase(ctx context.Context, purchaseID string) ([]model.Entitlement, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT entitlement_id, purchase_id, sale_line_id, line_item_index, owner_key, owner_user_id, owner_identity_id, event_id, ticket_type_id, entitlement_type, status, qr_secret, created_at, updated_at
		FROM entitlements
		WHERE purchase_id = $1
		ORDER BY sale_line_id ASC, line_item_index ASC
	`, purchaseID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve entitlements", err)
	}
	defer rows.Close()

	entitlements := []model.Entitlement{}
	for rows.Next() {
		ent := model.Entitlement{}
		var ownerUserID, ownerIdentityID, qrSecret sql.NullString
		var eventID, ticketTypeID sql.NullInt64

		err = rows.Scan(&ent.ID, &ent.PurchaseID, &ent.SaleLineID, &ent.LineItemIndex, &ent.OwnerKey,
			&ownerUserID, &ownerIdentityID, &eventID, &ticketTypeID, &ent.Type, &ent.Status, &qrSecret,
			&ent.CreatedAt, &ent.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan entitlement data", err)
		}

		ent.OwnerUserID = ownerUserID.String
		ent.OwnerIdentityID = ownerIdentityID.String
		ent.QrSecret = qrSecret.String
		ent.EventID = eventID.Int64
		ent.TicketTypeID = ticketTypeID.Int64
		entitlements = append(entitlements, ent)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over entitlements", err)
	}
	return entitlements, nil
}

func (d Datasource) UpdateEntitlementsStatusByPurchase(ctx context.Context, purchaseID string, status model.EntitlementStatus) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entitlements
		SET status = $2, updated_at = $3
		WHERE purchase_id = $1
	`, purchaseID, status, time.Now())
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update entitlement status", err)
	}
	return result.RowsAffected()
}

// TransferGuestEntitlements reassigns a guest purchase's entitlements to a
// claimed account. The owner-key predicate keeps the transfer idempotent: a
// replay finds no rows under the guest key and updates nothing.
func (d Datasource) TransferGuestEntitlements(ctx context.Context, purchaseID, fromOwnerKey, toOwnerKey, userID string) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE entitlements
		SET owner_key = $3, owner_user_id = $4, updated_at = $5
		WHERE purchase_id = $1 AND owner_key = $2
	`, purchaseID, fromOwnerKey, toOwnerKey, userID, time.Now())
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to transfer entitlements", err)
	}
	return result.RowsAffected()
}

func (d Datasource) AdjustSoldQuantity(ctx context.Context, ticketTypeID int64, delta int) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE ticket_types
		SET sold_quantity = sold_quantity + $2
		WHERE id = $1
	`, ticketTypeID, delta)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to adjust sold quantity", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Ticket type not found", nil)
	}
	return nil
}
