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
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/internal/request"
)

// PaymentIntent is the provider's view of one payment. Metadata carries
// the checkout context producers attached at intent creation; the
// fulfillment chain routes on it.
type PaymentIntent struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	ChargeID      string            `json:"charge_id,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ProviderEvent is one webhook event re-fetched from the provider by ID.
type ProviderEvent struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	ChargeID        string `json:"charge_id,omitempty"`
	DisputeReason   string `json:"dispute_reason,omitempty"`
}

// Kind returns the checkout kind recorded in the intent metadata.
func (p *PaymentIntent) Kind() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata["kind"]
}

// MetadataValue reads a metadata field, empty when absent.
func (p *PaymentIntent) MetadataValue(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}

// ProviderClient talks to the payment provider's REST API. Reads are
// retried with exponential backoff inside the configured timeout; the
// operation-level flat retry only kicks in once the client gives up.
type ProviderClient struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
}

func NewProviderClient(configuration *config.Configuration) *ProviderClient {
	return &ProviderClient{
		baseURL:   configuration.Provider.BaseURL,
		secretKey: configuration.Provider.SecretKey,
		timeout:   time.Duration(configuration.Provider.Timeout) * time.Second,
	}
}

// GetPaymentIntent fetches one payment intent by ID. A 404 is permanent:
// the intent will never appear, so the caller should not burn retries.
func (p *ProviderClient) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := p.get(ctx, fmt.Sprintf("%s/v1/payment_intents/%s", p.baseURL, id), &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetEvent re-fetches a webhook event from the provider so handlers never
// trust producer-supplied payloads for money movement.
func (p *ProviderClient) GetEvent(ctx context.Context, id string) (*ProviderEvent, error) {
	var event ProviderEvent
	if err := p.get(ctx, fmt.Sprintf("%s/v1/events/%s", p.baseURL, id), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (p *ProviderClient) get(ctx context.Context, url string, out interface{}) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.secretKey)

		resp, err := request.Call(req, out)
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("provider resource not found: %s", url), nil))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("provider rejected request: %d", resp.StatusCode), nil))
		case resp.StatusCode >= 500:
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = p.timeout
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
