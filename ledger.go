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
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

// upsertLedger writes the sale read model for a paid purchase and issues
// entitlements. Replays are absorbed by the entitlement dedupe key inside
// the datasource transaction, so sold counters move only for entitlements
// that actually came into existence on this run.
func (c *Courtside) upsertLedger(ctx context.Context, op *model.Operation) error {
	return c.applyLedgerOperation(ctx, op, false)
}

// upsertLedgerFree is the zero-amount variant: comp tickets and free
// events have no payment intent, so the summary is keyed by a synthetic
// one derived from the purchase.
func (c *Courtside) upsertLedgerFree(ctx context.Context, op *model.Operation) error {
	return c.applyLedgerOperation(ctx, op, true)
}

func (c *Courtside) applyLedgerOperation(ctx context.Context, op *model.Operation, free bool) error {
	var payload model.UpsertLedgerPayload
	if err := model.DecodePayload(op.Payload, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "malformed ledger payload", err)
	}
	if err := payload.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "invalid ledger payload", err)
	}

	event, err := c.datasource.GetEventByID(ctx, payload.EventID)
	if err != nil {
		return err
	}

	paymentIntentID := op.ResolvePaymentIntentID()
	if free || paymentIntentID == "" {
		paymentIntentID = "free:" + payload.PurchaseID
	}

	ownerKey := model.BuildOwnerKey(payload.UserID, payload.OwnerIdentityID, payload.GuestEmail)
	entitlementType := model.EntitlementEventTicket
	if strings.Contains(event.TemplateType, "tournament") {
		entitlementType = model.EntitlementTournament
	}

	upsert := model.LedgerUpsert{
		Summary: model.SaleSummary{
			PaymentIntentID:  paymentIntentID,
			PurchaseID:       payload.PurchaseID,
			EventID:          event.ID,
			UserID:           payload.UserID,
			OwnerIdentityID:  payload.OwnerIdentityID,
			PromoCodeID:      payload.PromoCodeID,
			SubtotalCents:    payload.SubtotalCents,
			DiscountCents:    payload.DiscountCents,
			PlatformFeeCents: payload.PlatformFeeCents,
			Currency:         payload.Currency,
			FeeMode:          payload.FeeMode,
			Status:           model.SalePaid,
		},
	}
	if free {
		upsert.Summary.PlatformFeeCents = 0
	}

	lineDiscounts := prorateDiscount(payload.Lines, payload.DiscountCents)
	totalGross := int64(0)

	// The dedupe key is (purchase, ticket type, unit index, owner, type),
	// so the index must keep counting across lines that share a ticket
	// type or the later line's units would collide with the earlier one's.
	unitIndex := map[int64]int{}

	for i, line := range payload.Lines {
		ticketType, err := c.datasource.GetTicketTypeByID(ctx, line.TicketTypeID)
		if err != nil {
			return err
		}

		unitPrice := line.UnitPriceCents
		if unitPrice == 0 && !free {
			unitPrice = ticketType.PriceCents
		}
		gross := unitPrice * int64(line.Quantity)
		totalGross += gross

		saleLine := model.SaleLine{
			EventID:              event.ID,
			TicketTypeID:         ticketType.ID,
			PromoCodeID:          payload.PromoCodeID,
			Quantity:             line.Quantity,
			UnitPriceCents:       unitPrice,
			DiscountPerUnitCents: lineDiscounts[i] / int64(line.Quantity),
			GrossCents:           gross,
			NetCents:             gross - lineDiscounts[i],
		}

		entitlements := make([]model.Entitlement, 0, line.Quantity)
		for unit := 0; unit < line.Quantity; unit++ {
			entitlements = append(entitlements, model.Entitlement{
				ID:              model.GenerateUUIDWithSuffix("ent"),
				PurchaseID:      payload.PurchaseID,
				LineItemIndex:   unitIndex[ticketType.ID],
				OwnerKey:        ownerKey,
				OwnerUserID:     payload.UserID,
				OwnerIdentityID: payload.OwnerIdentityID,
				EventID:         event.ID,
				TicketTypeID:    ticketType.ID,
				Type:            entitlementType,
				Status:          model.EntitlementActive,
				QrSecret:        model.GenerateUUIDWithSuffix("qr"),
			})
			unitIndex[ticketType.ID]++
		}

		upsert.Lines = append(upsert.Lines, model.LedgerUpsertLine{Line: saleLine, Entitlements: entitlements})
	}
	upsert.Summary.SubtotalCents = totalGross
	if payload.SubtotalCents > 0 {
		upsert.Summary.SubtotalCents = payload.SubtotalCents
	}

	created, err := c.datasource.ApplyLedgerUpsert(ctx, &upsert)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		logrus.Infof("ledger upsert for %s replayed, no new entitlements", payload.PurchaseID)
	}

	return c.datasource.UpsertPaymentEvent(ctx, &model.PaymentEvent{
		PaymentIntentID: paymentIntentID,
		PurchaseID:      payload.PurchaseID,
		EventID:         event.ID,
		UserID:          payload.UserID,
		Status:          model.PaymentEventOK,
	})
}

// prorateDiscount splits a purchase-level discount across lines in
// proportion to their gross value, pushing rounding remainder onto the
// last line so the parts always sum to the whole.
func prorateDiscount(lines []model.LedgerLine, discountCents int64) []int64 {
	shares := make([]int64, len(lines))
	if discountCents <= 0 || len(lines) == 0 {
		return shares
	}

	totalGross := int64(0)
	for _, line := range lines {
		totalGross += line.UnitPriceCents * int64(line.Quantity)
	}
	if totalGross <= 0 {
		return shares
	}

	allocated := int64(0)
	for i, line := range lines {
		if i == len(lines)-1 {
			shares[i] = discountCents - allocated
			break
		}
		gross := line.UnitPriceCents * int64(line.Quantity)
		shares[i] = discountCents * gross / totalGross
		allocated += shares[i]
	}
	return shares
}
