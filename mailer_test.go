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
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestMailerSend(t *testing.T) {
	engine, _ := newTestEngine(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://mailer.test/v1/send",
		httpmock.NewStringResponder(200, `{"id":"msg_1"}`))

	err := engine.mailer.Send(context.Background(), Email{
		To:          "ana@example.com",
		TemplateKey: "purchase-receipt",
		Data:        map[string]interface{}{"purchaseId": "purch_1"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestMailerSend_DownstreamError(t *testing.T) {
	engine, _ := newTestEngine(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://mailer.test/v1/send",
		httpmock.NewStringResponder(500, `{"error":"smtp unavailable"}`))

	err := engine.mailer.Send(context.Background(), Email{
		To:          "ana@example.com",
		TemplateKey: "purchase-receipt",
	})
	assert.Error(t, err)
}

func TestMailerSend_RequiresRecipient(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.mailer.Send(context.Background(), Email{TemplateKey: "purchase-receipt"})
	assert.Error(t, err)
}
