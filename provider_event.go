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
	"strings"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

// processProviderEvent routes one webhook event. The event is re-fetched
// from the provider by ID, so a forged or stale payload cannot move money:
// the provider's record is the only input that matters.
func (c *Courtside) processProviderEvent(ctx context.Context, op *model.Operation) error {
	var payload model.ProviderEventPayload
	if err := model.DecodePayload(op.Payload, &payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "malformed provider event payload", err)
	}
	if err := payload.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "invalid provider event payload", err)
	}

	eventID := op.ProviderEventID
	if eventID == "" {
		eventID = op.PayloadString("providerEventId")
	}
	if eventID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "provider event id is required", nil)
	}

	event, err := c.provider.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	switch {
	case event.Type == "payment_intent.succeeded" || event.Type == "checkout.session.completed":
		return c.fulfillByIntentID(ctx, event.PaymentIntentID)
	case strings.HasPrefix(event.Type, "charge.dispute"):
		return c.disputeByIntentID(ctx, event.PaymentIntentID, event.DisputeReason)
	case event.Type == "charge.refunded" || event.Type == "refund.created":
		return c.applyRefund(ctx, event.PaymentIntentID)
	default:
		// Events outside the handled set are acknowledged, not errors;
		// the provider sends far more kinds than fulfillment cares about.
		return nil
	}
}

// GetPaymentEvent exposes the per-intent reconciliation row for triage.
func (c *Courtside) GetPaymentEvent(ctx context.Context, paymentIntentID string) (*model.PaymentEvent, error) {
	return c.datasource.GetPaymentEventByIntent(ctx, paymentIntentID)
}

// fulfillPayment runs the fulfillment chain for an already-known intent.
func (c *Courtside) fulfillPayment(ctx context.Context, op *model.Operation) error {
	intentID := op.ResolvePaymentIntentID()
	if intentID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "payment intent id is required", nil)
	}
	return c.fulfillByIntentID(ctx, intentID)
}

func (c *Courtside) fulfillByIntentID(ctx context.Context, intentID string) error {
	if intentID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "provider event carries no payment intent", nil)
	}

	intent, err := c.provider.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Status != "succeeded" {
		// Not paid yet; the provider will send another event when it is.
		return fmt.Errorf("intent %s not settled (status %s)", intent.ID, intent.Status)
	}
	return c.fulfillIntent(ctx, intent)
}
