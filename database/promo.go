package database

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

// RedeemPromoCode records a redemption once per (promo code, purchase)
// pair. False means this purchase already redeemed the code.
func (d Datasource) RedeemPromoCode(ctx context.Context, redemption *model.PromoRedemption) (bool, error) {
	redemption.CreatedAt = time.Now()

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO promo_redemptions (promo_code_id, purchase_id, user_id, guest_email, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (promo_code_id, purchase_id) DO NOTHING
	`, redemption.PromoCodeID, redemption.PurchaseID, redemption.UserID, redemption.GuestEmail, redemption.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return false, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record promo redemption", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read insert result", err)
	}
	return affected == 1, nil
}
