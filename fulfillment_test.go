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

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func succeededIntent(kind string) *PaymentIntent {
	return &PaymentIntent{
		ID:            "pi_123",
		Status:        "succeeded",
		AmountCents:   5000,
		Currency:      "EUR",
		CustomerEmail: "ana@example.com",
		Metadata: map[string]string{
			"kind":       kind,
			"purchaseId": "purch_1",
			"userId":     "usr_1",
			"eventId":    "9",
		},
	}
}

func TestFulfillIntent_StoreOrderOnlyQueuesReceipt(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("INSERT INTO operations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := engine.fulfillIntent(context.Background(), succeededIntent("store_order"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillIntent_PaidCheckoutQueuesLedgerReceiptAndNotification(t *testing.T) {
	engine, mock := newTestEngine(t)

	// UPSERT_LEDGER, SEND_EMAIL_RECEIPT, SEND_NOTIFICATION_PURCHASE.
	for i := 0; i < 3; i++ {
		mock.ExpectQuery("INSERT INTO operations").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i + 1)))
	}

	err := engine.fulfillIntent(context.Background(), succeededIntent(""))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillIntent_PaidCheckoutWithPromoQueuesRedemption(t *testing.T) {
	engine, mock := newTestEngine(t)

	intent := succeededIntent("")
	intent.Metadata["promoCodeId"] = "44"

	// UPSERT_LEDGER, APPLY_PROMO_REDEMPTION, SEND_EMAIL_RECEIPT,
	// SEND_NOTIFICATION_PURCHASE.
	for i := 0; i < 4; i++ {
		mock.ExpectQuery("INSERT INTO operations").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i + 1)))
	}

	err := engine.fulfillIntent(context.Background(), intent)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillIntent_SplitEntryInvitesPartner(t *testing.T) {
	engine, mock := newTestEngine(t)

	intent := succeededIntent("tournament_split")
	intent.Metadata["partnerUserId"] = "usr_2"
	intent.Metadata["pairingId"] = "3"

	mock.ExpectQuery("INSERT INTO operations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("INSERT INTO notification_outbox").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO operations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	err := engine.fulfillIntent(context.Background(), intent)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillIntent_SecondInstallmentDoesNotReissueLedger(t *testing.T) {
	engine, mock := newTestEngine(t)

	intent := succeededIntent("tournament_split")
	intent.Metadata["secondChargeOf"] = "purch_0"
	// The second-installment strategy outranks kind routing only when the
	// marker is present; the chain places split fulfillment first, so
	// clear the kind to exercise the installment path.
	intent.Metadata["kind"] = ""

	mock.ExpectExec("INSERT INTO payment_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO operations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := engine.fulfillIntent(context.Background(), intent)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillIntent_UnknownKindErrors(t *testing.T) {
	engine, _ := newTestEngine(t)

	intent := succeededIntent("timeshare")
	intent.Status = "processing"

	err := engine.fulfillIntent(context.Background(), intent)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no fulfillment strategy")
}
