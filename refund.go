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
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/internal/notification"
	"github.com/courtsidehq/courtside/model"
)

// processRefundSingle reverses one purchase: sale flips to REFUNDED, its
// entitlements are revoked, and sold counters give the inventory back.
// Only counters for entitlements that were still ACTIVE move, so a replay
// after a partial crash cannot decrement twice.
func (c *Courtside) processRefundSingle(ctx context.Context, op *model.Operation) error {
	paymentIntentID := op.ResolvePaymentIntentID()
	if paymentIntentID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "payment intent id is required", nil)
	}
	return c.applyRefund(ctx, paymentIntentID)
}

func (c *Courtside) applyRefund(ctx context.Context, paymentIntentID string) error {
	summary, err := c.datasource.GetSaleSummaryByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}

	if summary.Status == model.SaleRefunded {
		logrus.Infof("sale %s already refunded", paymentIntentID)
		return nil
	}

	entitlements, err := c.datasource.GetEntitlementsByPurchase(ctx, summary.PurchaseID)
	if err != nil {
		return err
	}

	activePerTicketType := map[int64]int{}
	for _, ent := range entitlements {
		if ent.Status == model.EntitlementActive && ent.TicketTypeID != 0 {
			activePerTicketType[ent.TicketTypeID]++
		}
	}

	if _, err := c.datasource.UpdateEntitlementsStatusByPurchase(ctx, summary.PurchaseID, model.EntitlementRefunded); err != nil {
		return err
	}
	for ticketTypeID, count := range activePerTicketType {
		if err := c.datasource.AdjustSoldQuantity(ctx, ticketTypeID, -count); err != nil {
			return err
		}
	}

	if err := c.datasource.UpdateSaleStatus(ctx, paymentIntentID, model.SaleRefunded, ""); err != nil {
		return err
	}

	return c.datasource.UpsertPaymentEvent(ctx, &model.PaymentEvent{
		PaymentIntentID: paymentIntentID,
		PurchaseID:      summary.PurchaseID,
		EventID:         summary.EventID,
		UserID:          summary.UserID,
		Status:          model.PaymentEventRefunded,
	})
}

// markDispute flags a sale as disputed and suspends its entitlements so
// the tickets cannot be used while the chargeback is open. Producers
// identify the sale by whatever they hold: the summary row id, the
// payment intent, or the purchase.
func (c *Courtside) markDispute(ctx context.Context, op *model.Operation) error {
	summary, err := c.resolveDisputedSale(ctx, op)
	if err != nil {
		return err
	}
	return c.applyDispute(ctx, summary, op.PayloadString("disputeReason"))
}

func (c *Courtside) resolveDisputedSale(ctx context.Context, op *model.Operation) (*model.SaleSummary, error) {
	if id := op.PayloadInt64("saleSummaryId"); id != 0 {
		return c.datasource.GetSaleSummaryByID(ctx, id)
	}
	if paymentIntentID := op.ResolvePaymentIntentID(); paymentIntentID != "" {
		return c.datasource.GetSaleSummaryByPaymentIntent(ctx, paymentIntentID)
	}
	if purchaseID := op.ResolvePurchaseID(); purchaseID != "" {
		return c.datasource.GetSaleSummaryByPurchase(ctx, purchaseID)
	}
	return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "dispute carries no sale identifier", nil)
}

func (c *Courtside) disputeByIntentID(ctx context.Context, paymentIntentID, reason string) error {
	if paymentIntentID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "dispute carries no payment intent", nil)
	}
	summary, err := c.datasource.GetSaleSummaryByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	return c.applyDispute(ctx, summary, reason)
}

func (c *Courtside) applyDispute(ctx context.Context, summary *model.SaleSummary, reason string) error {
	if err := c.datasource.UpdateSaleStatus(ctx, summary.PaymentIntentID, model.SaleDisputed, reason); err != nil {
		return err
	}

	suspended, err := c.datasource.UpdateEntitlementsStatusByPurchase(ctx, summary.PurchaseID, model.EntitlementSuspended)
	if err != nil {
		return err
	}

	if err := c.datasource.UpsertPaymentEvent(ctx, &model.PaymentEvent{
		PaymentIntentID: summary.PaymentIntentID,
		PurchaseID:      summary.PurchaseID,
		EventID:         summary.EventID,
		UserID:          summary.UserID,
		Status:          model.PaymentEventError,
		ErrorMessage:    reason,
	}); err != nil {
		return err
	}

	notification.NotifyError(fmt.Errorf("payment %s disputed, %d entitlements suspended: %s", summary.PaymentIntentID, suspended, reason))
	return nil
}
