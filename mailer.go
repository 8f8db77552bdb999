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

	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/internal/request"
)

// Email is one templated transactional email.
type Email struct {
	To          string                 `json:"to"`
	From        string                 `json:"from"`
	TemplateKey string                 `json:"template_key"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// MailerClient delivers templated emails through the configured mail
// service. Delivery is not retried here; the email outbox dedupe key plus
// the operation retry policy own redelivery.
type MailerClient struct {
	url       string
	apiKey    string
	fromEmail string
}

func NewMailerClient(configuration *config.Configuration) *MailerClient {
	return &MailerClient{
		url:       configuration.Mailer.Url,
		apiKey:    configuration.Mailer.ApiKey,
		fromEmail: configuration.Mailer.FromEmail,
	}
}

func (m *MailerClient) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "email recipient is required", nil)
	}
	if email.From == "" {
		email.From = m.fromEmail
	}

	payload, err := request.ToJsonReq(&email)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/v1/send", m.url), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailer returned %d", resp.StatusCode)
	}
	return nil
}
