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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/courtsidehq/courtside/model"
)

// FulfillmentStrategy maps one checkout kind to the follow-up operations
// it needs. The chain is ordered: the first applicable strategy handles
// the intent and the rest are not consulted, so more specific kinds must
// sit before the catch-all paid checkout.
type FulfillmentStrategy interface {
	Name() string
	Applicable(intent *PaymentIntent) bool
	Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error
}

// Chain order mirrors checkout specificity, merch store first and the
// generic paid checkout last.
func defaultFulfillmentChain() []FulfillmentStrategy {
	return []FulfillmentStrategy{
		merchStoreStrategy{},
		courtBookingStrategy{},
		creditPackStrategy{},
		resaleStrategy{},
		tournamentSplitStrategy{},
		tournamentEntryStrategy{},
		secondInstallmentStrategy{},
		paidCheckoutStrategy{},
	}
}

func (c *Courtside) fulfillIntent(ctx context.Context, intent *PaymentIntent) error {
	for _, strategy := range c.fulfillment {
		if !strategy.Applicable(intent) {
			continue
		}
		logrus.Infof("fulfilling intent %s via %s", intent.ID, strategy.Name())
		return strategy.Fulfill(ctx, c, intent)
	}
	// A kind this build does not know yet; a newer deploy may pick it up
	// on retry.
	return fmt.Errorf("no fulfillment strategy for intent %s (kind %q)", intent.ID, intent.Kind())
}

// enqueueFollowUp records a downstream operation keyed so replays of the
// triggering operation do not duplicate it.
func (c *Courtside) enqueueFollowUp(ctx context.Context, opType model.OperationType, dedupeKey string, intent *PaymentIntent, payload map[string]interface{}) error {
	op := &model.Operation{
		OperationType:   opType,
		DedupeKey:       dedupeKey,
		Payload:         payload,
		PaymentIntentID: intent.ID,
		PurchaseID:      intent.MetadataValue("purchaseId"),
	}
	_, err := c.datasource.EnqueueOperation(ctx, op)
	return err
}

func ledgerPayloadFromIntent(intent *PaymentIntent) map[string]interface{} {
	payload := map[string]interface{}{
		"purchaseId":    intent.MetadataValue("purchaseId"),
		"currency":      intent.Currency,
		"userId":        intent.MetadataValue("userId"),
		"guestEmail":    intent.MetadataValue("guestEmail"),
		"subtotalCents": intent.AmountCents,
		"feeMode":       intent.MetadataValue("feeMode"),
	}
	if eventID, err := strconv.ParseInt(intent.MetadataValue("eventId"), 10, 64); err == nil {
		payload["eventId"] = eventID
	}
	if promoCodeID, err := strconv.ParseInt(intent.MetadataValue("promoCodeId"), 10, 64); err == nil {
		payload["promoCodeId"] = promoCodeID
	}
	if rawLines := intent.MetadataValue("lines"); rawLines != "" {
		var lines []model.LedgerLine
		if err := json.Unmarshal([]byte(rawLines), &lines); err == nil {
			payload["lines"] = lines
		}
	}
	return payload
}

func receiptPayload(intent *PaymentIntent) map[string]interface{} {
	return map[string]interface{}{
		"purchaseId":      intent.MetadataValue("purchaseId"),
		"paymentIntentId": intent.ID,
		"recipient":       intent.CustomerEmail,
		"amountCents":     intent.AmountCents,
		"currency":        intent.Currency,
	}
}

type merchStoreStrategy struct{}

func (merchStoreStrategy) Name() string { return "merch store" }

func (merchStoreStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Kind() == "store_order"
}

// Store orders carry no entitlements; the buyer just gets a receipt.
func (merchStoreStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	return c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s", purchaseID), intent, receiptPayload(intent))
}

type courtBookingStrategy struct{}

func (courtBookingStrategy) Name() string { return "court booking" }

func (courtBookingStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Kind() == "court_booking"
}

func (courtBookingStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	if err := c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s", purchaseID), intent, receiptPayload(intent)); err != nil {
		return err
	}
	return c.enqueueFollowUp(ctx, model.OpSendNotificationPurchase,
		fmt.Sprintf("SEND_NOTIFICATION_PURCHASE:%s", purchaseID), intent, map[string]interface{}{
			"purchaseId": purchaseID,
			"userId":     intent.MetadataValue("userId"),
			"title":      "Court booked",
			"body":       "Your court booking is confirmed.",
		})
}

type creditPackStrategy struct{}

func (creditPackStrategy) Name() string { return "credit pack" }

func (creditPackStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Kind() == "credit_pack"
}

func (creditPackStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	return c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s", purchaseID), intent, receiptPayload(intent))
}

type resaleStrategy struct{}

func (resaleStrategy) Name() string { return "ticket resale" }

func (resaleStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Kind() == "resale"
}

// Resale reissues the ledger under the buyer, which moves the entitlement
// ownership, then notifies both sides.
func (resaleStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	if err := c.enqueueFollowUp(ctx, model.OpUpsertLedger,
		fmt.Sprintf("UPSERT_LEDGER:%s", purchaseID), intent, ledgerPayloadFromIntent(intent)); err != nil {
		return err
	}
	return c.enqueueFollowUp(ctx, model.OpSendNotificationPurchase,
		fmt.Sprintf("SEND_NOTIFICATION_PURCHASE:%s", purchaseID), intent, map[string]interface{}{
			"purchaseId": purchaseID,
			"userId":     intent.MetadataValue("userId"),
			"title":      "Resale complete",
			"body":       "Your resale ticket is in your account.",
		})
}

type tournamentSplitStrategy struct{}

func (tournamentSplitStrategy) Name() string { return "tournament split payment" }

func (tournamentSplitStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Kind() == "tournament_split"
}

// Split entries issue the ledger for the paying player and invite the
// partner to cover their half.
func (tournamentSplitStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	if err := c.enqueueFollowUp(ctx, model.OpUpsertLedger,
		fmt.Sprintf("UPSERT_LEDGER:%s", purchaseID), intent, ledgerPayloadFromIntent(intent)); err != nil {
		return err
	}
	if partnerUserID := intent.MetadataValue("partnerUserId"); partnerUserID != "" {
		_, err := c.datasource.CreateOutboxItem(ctx, &model.NotificationOutboxItem{
			UserID:           partnerUserID,
			NotificationType: model.NotificationPairingInvite,
			Payload: map[string]interface{}{
				"pairingId":  intent.MetadataValue("pairingId"),
				"eventId":    intent.MetadataValue("eventId"),
				"fromUserId": intent.MetadataValue("userId"),
			},
		})
		if err != nil {
			return err
		}
	}
	return c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s", purchaseID), intent, receiptPayload(intent))
}

type tournamentEntryStrategy struct{}

func (tournamentEntryStrategy) Name() string { return "tournament full payment" }

func (tournamentEntryStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Kind() == "tournament_entry"
}

func (tournamentEntryStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	if err := c.enqueueFollowUp(ctx, model.OpUpsertLedger,
		fmt.Sprintf("UPSERT_LEDGER:%s", purchaseID), intent, ledgerPayloadFromIntent(intent)); err != nil {
		return err
	}
	return c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s", purchaseID), intent, receiptPayload(intent))
}

type secondInstallmentStrategy struct{}

func (secondInstallmentStrategy) Name() string { return "second installment" }

func (secondInstallmentStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.MetadataValue("secondChargeOf") != ""
}

// The first installment already issued entitlements; the second only
// settles the balance and confirms it.
func (secondInstallmentStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	originalPurchaseID := intent.MetadataValue("secondChargeOf")
	if err := c.datasource.UpsertPaymentEvent(ctx, &model.PaymentEvent{
		PaymentIntentID: intent.ID,
		PurchaseID:      originalPurchaseID,
		UserID:          intent.MetadataValue("userId"),
		Status:          model.PaymentEventOK,
	}); err != nil {
		return err
	}
	return c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s:second", originalPurchaseID), intent, receiptPayload(intent))
}

type paidCheckoutStrategy struct{}

func (paidCheckoutStrategy) Name() string { return "paid checkout" }

func (paidCheckoutStrategy) Applicable(intent *PaymentIntent) bool {
	return intent.Status == "succeeded" && intent.MetadataValue("purchaseId") != ""
}

func (paidCheckoutStrategy) Fulfill(ctx context.Context, c *Courtside, intent *PaymentIntent) error {
	purchaseID := intent.MetadataValue("purchaseId")
	if err := c.enqueueFollowUp(ctx, model.OpUpsertLedger,
		fmt.Sprintf("UPSERT_LEDGER:%s", purchaseID), intent, ledgerPayloadFromIntent(intent)); err != nil {
		return err
	}
	if promoCodeID := intent.MetadataValue("promoCodeId"); promoCodeID != "" {
		if err := c.enqueueFollowUp(ctx, model.OpApplyPromoRedemption,
			fmt.Sprintf("APPLY_PROMO_REDEMPTION:%s:%s", promoCodeID, purchaseID), intent, map[string]interface{}{
				"purchaseId":  purchaseID,
				"promoCodeId": promoCodeID,
				"userId":      intent.MetadataValue("userId"),
				"guestEmail":  intent.MetadataValue("guestEmail"),
			}); err != nil {
			return err
		}
	}
	if err := c.enqueueFollowUp(ctx, model.OpSendEmailReceipt,
		fmt.Sprintf("SEND_EMAIL_RECEIPT:%s", purchaseID), intent, receiptPayload(intent)); err != nil {
		return err
	}
	if userID := intent.MetadataValue("userId"); userID != "" {
		return c.enqueueFollowUp(ctx, model.OpSendNotificationPurchase,
			fmt.Sprintf("SEND_NOTIFICATION_PURCHASE:%s", purchaseID), intent, map[string]interface{}{
				"purchaseId": purchaseID,
				"userId":     userID,
				"title":      "Purchase confirmed",
				"body":       "Your tickets are ready.",
			})
	}
	return nil
}
