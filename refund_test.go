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
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

func saleSummaryRows(status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "payment_intent_id", "purchase_id", "event_id", "user_id", "owner_identity_id", "promo_code_id",
		"subtotal_cents", "discount_cents", "platform_fee_cents", "currency", "fee_mode", "status", "dispute_reason",
		"created_at", "updated_at",
	}).AddRow(int64(100), "pi_123", "purch_1", int64(9), "usr_1", nil, nil,
		int64(5000), int64(0), int64(0), "EUR", nil, status, nil, now, now)
}

func entitlementRows() *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"entitlement_id", "purchase_id", "sale_line_id", "line_item_index", "owner_key", "owner_user_id",
		"owner_identity_id", "event_id", "ticket_type_id", "entitlement_type", "status", "qr_secret",
		"created_at", "updated_at",
	})
	rows.AddRow("ent_1", "purch_1", int64(1), 0, "user:usr_1", "usr_1", nil, int64(9), int64(7), "TICKET", "ACTIVE", "qr_1", now, now)
	rows.AddRow("ent_2", "purch_1", int64(1), 1, "user:usr_1", "usr_1", nil, int64(9), int64(7), "TICKET", "ACTIVE", "qr_2", now, now)
	rows.AddRow("ent_3", "purch_1", int64(2), 0, "user:usr_1", "usr_1", nil, int64(9), int64(8), "TICKET", "REFUNDED", "qr_3", now, now)
	return rows
}

func TestApplyRefund_RevokesEntitlementsAndReturnsInventory(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").WillReturnRows(saleSummaryRows("PAID"))
	mock.ExpectQuery("SELECT (.+) FROM entitlements").WillReturnRows(entitlementRows())
	mock.ExpectExec("UPDATE entitlements").WillReturnResult(sqlmock.NewResult(0, 3))
	// Only the two still-ACTIVE entitlements of ticket type 7 move the
	// counter; the already-refunded one of type 8 does not.
	mock.ExpectExec("UPDATE ticket_types").
		WithArgs(int64(7), -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sale_summaries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))

	err := engine.applyRefund(context.Background(), "pi_123")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRefund_AlreadyRefundedIsNoop(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").WillReturnRows(saleSummaryRows("REFUNDED"))

	err := engine.applyRefund(context.Background(), "pi_123")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRefund_UnknownSaleIsPermanent(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := engine.applyRefund(context.Background(), "pi_unknown")
	assert.Error(t, err)
	assert.True(t, apierror.IsPermanent(err))
}

// A dispute must take the tickets out of circulation, not just flag the
// sale: the suspension update is part of the handler's contract.
func TestMarkDispute_MarksSaleAndSuspendsEntitlements(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").WillReturnRows(saleSummaryRows("PAID"))
	mock.ExpectExec("UPDATE sale_summaries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE entitlements").
		WithArgs("purch_1", model.EntitlementSuspended, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))

	err := engine.markDispute(context.Background(), &model.Operation{
		OperationType:   model.OpMarkDispute,
		PaymentIntentID: "pi_123",
		Payload:         map[string]interface{}{"disputeReason": "fraudulent"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Producers that never saw the payment intent (guest checkouts resolved
// later) identify the sale by purchase; the handler falls back to that
// lookup instead of rejecting the operation.
func TestMarkDispute_ResolvesSaleByPurchase(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").WillReturnRows(saleSummaryRows("PAID"))
	mock.ExpectExec("UPDATE sale_summaries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE entitlements").
		WithArgs("purch_1", model.EntitlementSuspended, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))

	err := engine.markDispute(context.Background(), &model.Operation{
		OperationType: model.OpMarkDispute,
		PurchaseID:    "purch_1",
		Payload:       map[string]interface{}{"disputeReason": "fraudulent"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDispute_ResolvesSaleBySummaryID(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").
		WithArgs(int64(100)).
		WillReturnRows(saleSummaryRows("PAID"))
	mock.ExpectExec("UPDATE sale_summaries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE entitlements").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))

	err := engine.markDispute(context.Background(), &model.Operation{
		OperationType: model.OpMarkDispute,
		Payload:       map[string]interface{}{"saleSummaryId": float64(100), "disputeReason": "fraudulent"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDispute_NoSaleIdentifierIsPermanent(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.markDispute(context.Background(), &model.Operation{
		OperationType: model.OpMarkDispute,
		Payload:       map[string]interface{}{"disputeReason": "fraudulent"},
	})
	assert.Error(t, err)
	assert.True(t, apierror.IsPermanent(err))
}
