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
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/courtsidehq/courtside/internal/apierror"
)

func TestGetPaymentIntent(t *testing.T) {
	engine, _ := newTestEngine(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://provider.test/v1/payment_intents/pi_123",
		httpmock.NewStringResponder(200, `{
			"id": "pi_123",
			"status": "succeeded",
			"amount_cents": 5000,
			"currency": "EUR",
			"customer_email": "ana@example.com",
			"metadata": {"kind": "tournament_entry", "purchaseId": "purch_1"}
		}`))

	intent, err := engine.provider.GetPaymentIntent(context.Background(), "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "succeeded", intent.Status)
	assert.Equal(t, "tournament_entry", intent.Kind())
	assert.Equal(t, "purch_1", intent.MetadataValue("purchaseId"))
}

func TestGetPaymentIntent_NotFoundIsPermanent(t *testing.T) {
	engine, _ := newTestEngine(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://provider.test/v1/payment_intents/pi_missing",
		httpmock.NewStringResponder(404, `{}`))

	_, err := engine.provider.GetPaymentIntent(context.Background(), "pi_missing")
	assert.Error(t, err)
	assert.True(t, apierror.IsPermanent(err))
	// A permanent 404 must not be retried.
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGetPaymentIntent_RetriesServerErrors(t *testing.T) {
	engine, _ := newTestEngine(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "https://provider.test/v1/payment_intents/pi_flaky",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(503, `{}`), nil
			}
			return httpmock.NewStringResponse(200, `{"id":"pi_flaky","status":"succeeded"}`), nil
		})

	intent, err := engine.provider.GetPaymentIntent(context.Background(), "pi_flaky")
	assert.NoError(t, err)
	assert.Equal(t, "pi_flaky", intent.ID)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestGetEvent(t *testing.T) {
	engine, _ := newTestEngine(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://provider.test/v1/events/evt_1",
		httpmock.NewStringResponder(200, `{
			"id": "evt_1",
			"type": "charge.dispute.created",
			"payment_intent_id": "pi_123",
			"dispute_reason": "fraudulent"
		}`))

	event, err := engine.provider.GetEvent(context.Background(), "evt_1")
	assert.NoError(t, err)
	assert.Equal(t, "charge.dispute.created", event.Type)
	assert.Equal(t, "fraudulent", event.DisputeReason)
}
