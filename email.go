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
	"github.com/courtsidehq/courtside/model"
)

const receiptTemplateKey = "purchase-receipt"

// sendEmailReceipt delivers the purchase receipt. The email outbox row
// keyed purchaseId:template:recipient is the send-once gate: a replayed
// operation that finds the row already SENT succeeds without mailing.
// Amounts and line items come from the sale read model, not the payload,
// so the receipt always reflects what the ledger recorded.
func (c *Courtside) sendEmailReceipt(ctx context.Context, op *model.Operation) error {
	purchaseID := op.ResolvePurchaseID()
	if purchaseID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "purchase id is required", nil)
	}

	summary, err := c.datasource.GetSaleSummaryByPurchase(ctx, purchaseID)
	if err != nil {
		return err
	}

	recipient := op.PayloadString("recipient")
	if recipient == "" && summary.UserID != "" {
		profile, err := c.datasource.GetProfileByID(ctx, summary.UserID)
		if err != nil {
			return err
		}
		recipient = profile.Email
	}
	if recipient == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "receipt has no resolvable recipient", nil)
	}

	lines, err := c.datasource.GetSaleLines(ctx, summary.ID)
	if err != nil {
		return err
	}
	lineItems := make([]map[string]interface{}, 0, len(lines))
	for _, line := range lines {
		lineItems = append(lineItems, map[string]interface{}{
			"ticketTypeId":   line.TicketTypeID,
			"quantity":       line.Quantity,
			"unitPriceCents": line.UnitPriceCents,
			"netCents":       line.NetCents,
		})
	}

	return c.deliverEmail(ctx, model.EmailOutboxEntry{
		DedupeKey:   fmt.Sprintf("%s:%s:%s", purchaseID, receiptTemplateKey, model.NormalizeEmail(recipient)),
		TemplateKey: receiptTemplateKey,
		Recipient:   recipient,
		PurchaseID:  purchaseID,
		Payload: map[string]interface{}{
			"purchaseId":      purchaseID,
			"paymentIntentId": summary.PaymentIntentID,
			"amountCents":     summary.SubtotalCents - summary.DiscountCents,
			"currency":        summary.Currency,
			"lines":           lineItems,
		},
	})
}

// sendEmailOutbox delivers an arbitrary templated email enqueued by a
// producer, same send-once gate as the receipt path.
func (c *Courtside) sendEmailOutbox(ctx context.Context, op *model.Operation) error {
	var payload model.SendEmailOutboxPayload
	if err := model.DecodePayload(op.Payload, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "malformed email payload", err)
	}
	if err := payload.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "invalid email payload", err)
	}

	dedupeKey := payload.DedupeKey
	if dedupeKey == "" {
		dedupeKey = fmt.Sprintf("%s:%s:%s", payload.PurchaseID, payload.TemplateKey, model.NormalizeEmail(payload.Recipient))
	}

	return c.deliverEmail(ctx, model.EmailOutboxEntry{
		DedupeKey:     dedupeKey,
		TemplateKey:   payload.TemplateKey,
		Recipient:     payload.Recipient,
		PurchaseID:    payload.PurchaseID,
		EntitlementID: payload.EntitlementID,
		Payload:       payload.Template,
	})
}

func (c *Courtside) deliverEmail(ctx context.Context, entry model.EmailOutboxEntry) error {
	created, err := c.datasource.QueueEmail(ctx, &entry)
	if err != nil {
		return err
	}
	if !created {
		existing, err := c.datasource.GetEmailOutboxEntry(ctx, entry.DedupeKey)
		if err != nil {
			return err
		}
		if existing.Status == model.OutboxSent {
			logrus.Infof("email %s already sent", entry.DedupeKey)
			return nil
		}
	}

	sendErr := c.mailer.Send(ctx, Email{
		To:          entry.Recipient,
		TemplateKey: entry.TemplateKey,
		Data:        entry.Payload,
	})
	if sendErr != nil {
		if err := c.datasource.MarkEmailFailed(ctx, entry.DedupeKey, sendErr.Error()); err != nil {
			return err
		}
		return sendErr
	}
	return c.datasource.MarkEmailSent(ctx, entry.DedupeKey)
}
