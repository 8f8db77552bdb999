/*
Copyright 2025 Courtside Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package courtside

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

// sendNotificationPurchase drops a purchase confirmation into the
// notification outbox. The outbox worker owns rendering and delivery;
// this handler only records the intent.
func (c *Courtside) sendNotificationPurchase(ctx context.Context, op *model.Operation) error {
	userID := op.PayloadString("userId")
	if userID == "" {
		// Guest purchases have no account to notify; the receipt email
		// covers them.
		return nil
	}

	purchaseID := op.ResolvePurchaseID()
	if purchaseID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "purchase id is required", nil)
	}

	_, err := c.datasource.CreateOutboxItem(ctx, &model.NotificationOutboxItem{
		UserID:           userID,
		NotificationType: model.NotificationType("PURCHASE_CONFIRMED"),
		Payload: map[string]interface{}{
			"purchaseId": purchaseID,
			"title":      op.PayloadString("title"),
			"body":       op.PayloadString("body"),
		},
	})
	return err
}

// applyPromoRedemption consumes a promo code for a purchase. The unique
// (promo, purchase) pair makes the replay a recorded no-op.
func (c *Courtside) applyPromoRedemption(ctx context.Context, op *model.Operation) error {
	promoCodeID := op.PayloadInt64("promoCodeId")
	purchaseID := op.ResolvePurchaseID()
	if promoCodeID == 0 || purchaseID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "promo code and purchase are required", nil)
	}

	created, err := c.datasource.RedeemPromoCode(ctx, &model.PromoRedemption{
		PromoCodeID: promoCodeID,
		PurchaseID:  purchaseID,
		UserID:      op.PayloadString("userId"),
		GuestEmail:  op.PayloadString("guestEmail"),
	})
	if err != nil {
		return err
	}
	if !created {
		logrus.Infof("promo %d already redeemed for %s", promoCodeID, purchaseID)
	}
	return nil
}

// claimGuestPurchase moves a guest purchase onto a registered account:
// link the normalized email to the user, then transfer every entitlement
// still held under the guest owner key. A replay finds nothing left under
// the guest key and transfers zero rows. An email already linked to a
// different account blocks the claim; stealing tickets by re-claiming
// someone else's address must not be possible.
func (c *Courtside) claimGuestPurchase(ctx context.Context, op *model.Operation) error {
	var payload model.ClaimGuestPurchasePayload
	if err := model.DecodePayload(op.Payload, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "malformed claim payload", err)
	}
	if err := payload.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "invalid claim payload", err)
	}

	existing, err := c.datasource.GetEmailIdentity(ctx, payload.UserEmail)
	if err == nil && existing.UserID != payload.UserID {
		return apierror.NewAPIError(apierror.ErrConflict, "email is linked to another account", nil)
	}
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); !ok || apiErr.Code != apierror.ErrNotFound {
			return err
		}
	}

	if _, err := c.datasource.UpsertEmailIdentity(ctx, payload.UserEmail, payload.UserID); err != nil {
		return err
	}

	fromOwnerKey := model.BuildOwnerKey("", "", payload.UserEmail)
	toOwnerKey := model.BuildOwnerKey(payload.UserID, "", "")

	transferred, err := c.datasource.TransferGuestEntitlements(ctx, payload.PurchaseID, fromOwnerKey, toOwnerKey, payload.UserID)
	if err != nil {
		return err
	}
	if transferred == 0 {
		logrus.Infof("no guest entitlements left to claim for %s", payload.PurchaseID)
	}
	return nil
}
