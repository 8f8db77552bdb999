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
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

func ledgerOperation() *model.Operation {
	return &model.Operation{
		ID:              10,
		OperationType:   model.OpUpsertLedger,
		DedupeKey:       "UPSERT_LEDGER:purch_1",
		PaymentIntentID: "pi_123",
		PurchaseID:      "purch_1",
		Payload: map[string]interface{}{
			"purchaseId": "purch_1",
			"eventId":    float64(9),
			"userId":     "usr_1",
			"currency":   "EUR",
			"lines": []interface{}{
				map[string]interface{}{
					"ticketTypeId":   float64(7),
					"quantity":       float64(2),
					"unitPriceCents": float64(2500),
				},
			},
		},
	}
}

func eventRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "slug", "organization_id", "template_type", "starts_at", "ends_at",
		"timezone", "location_name", "location_city", "address", "created_at",
	}).AddRow(int64(9), "City Open", "city-open", nil, "event", nil, nil, nil, nil, nil, nil, time.Now())
}

func ticketTypeRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "event_id", "name", "price_cents", "currency", "max_quantity", "sold_quantity",
	}).AddRow(int64(7), int64(9), "General", int64(2500), "EUR", 100, 10)
}

func expectLedgerWrites(mock sqlmock.Sqlmock, entitlementRowsCreated int64) {
	mock.ExpectQuery("SELECT (.+) FROM events").WillReturnRows(eventRow())
	mock.ExpectQuery("SELECT (.+) FROM ticket_types").WillReturnRows(ticketTypeRow())
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sale_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("DELETE FROM sale_lines").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(200)))
	mock.ExpectExec("INSERT INTO entitlements").WillReturnResult(sqlmock.NewResult(0, entitlementRowsCreated))
	mock.ExpectExec("INSERT INTO entitlements").WillReturnResult(sqlmock.NewResult(0, entitlementRowsCreated))
	if entitlementRowsCreated > 0 {
		mock.ExpectExec("UPDATE ticket_types").
			WithArgs(int64(7), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestUpsertLedger_FirstRunMovesSoldCounter(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectLedgerWrites(mock, 1)

	err := engine.upsertLedger(context.Background(), ledgerOperation())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Replaying the same operation recreates sale lines but every entitlement
// insert hits its dedupe key, so the sold counter does not move again.
func TestUpsertLedger_ReplayLeavesSoldCounterFlat(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectLedgerWrites(mock, 0)

	err := engine.upsertLedger(context.Background(), ledgerOperation())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two lines selling the same ticket type must not collide on the
// entitlement dedupe key: the unit index keeps counting across lines, so
// every unit of the purchase gets its own entitlement and the sold
// counter moves by the full quantity.
func TestUpsertLedger_LinesSharingTicketTypeIssueAllUnits(t *testing.T) {
	engine, mock := newTestEngine(t)

	op := ledgerOperation()
	op.Payload["lines"] = []interface{}{
		map[string]interface{}{
			"ticketTypeId":   float64(7),
			"quantity":       float64(2),
			"unitPriceCents": float64(2500),
		},
		map[string]interface{}{
			"ticketTypeId":   float64(7),
			"quantity":       float64(1),
			"unitPriceCents": float64(2000),
		},
	}

	entitlementArgs := func(saleLineID int64, index int) []driver.Value {
		return []driver.Value{
			sqlmock.AnyArg(), "purch_1", saleLineID, index, "user:usr_1", "usr_1", "",
			int64(9), int64(7), model.EntitlementEventTicket, model.EntitlementActive,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		}
	}

	mock.ExpectQuery("SELECT (.+) FROM events").WillReturnRows(eventRow())
	mock.ExpectQuery("SELECT (.+) FROM ticket_types").WillReturnRows(ticketTypeRow())
	mock.ExpectQuery("SELECT (.+) FROM ticket_types").WillReturnRows(ticketTypeRow())
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sale_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("DELETE FROM sale_lines").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(200)))
	mock.ExpectExec("INSERT INTO entitlements").
		WithArgs(entitlementArgs(200, 0)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO entitlements").
		WithArgs(entitlementArgs(200, 1)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(201)))
	// The second line's unit continues at index 2 instead of reusing 0.
	mock.ExpectExec("INSERT INTO entitlements").
		WithArgs(entitlementArgs(201, 2)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE ticket_types").
		WithArgs(int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))

	err := engine.upsertLedger(context.Background(), op)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLedger_MissingEventIsPermanent(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT (.+) FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := engine.upsertLedger(context.Background(), ledgerOperation())
	assert.Error(t, err)
	assert.True(t, apierror.IsPermanent(err))
}

func TestUpsertLedger_PayloadWithoutLinesIsPermanent(t *testing.T) {
	engine, _ := newTestEngine(t)

	op := ledgerOperation()
	delete(op.Payload, "lines")

	err := engine.upsertLedger(context.Background(), op)
	assert.Error(t, err)
	assert.True(t, apierror.IsPermanent(err))
}

func TestUpsertLedgerFree_UsesSyntheticIntentKey(t *testing.T) {
	engine, mock := newTestEngine(t)

	op := ledgerOperation()
	op.OperationType = model.OpUpsertLedgerFree
	op.PaymentIntentID = ""

	mock.ExpectQuery("SELECT (.+) FROM events").WillReturnRows(eventRow())
	mock.ExpectQuery("SELECT (.+) FROM ticket_types").WillReturnRows(ticketTypeRow())
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sale_summaries").
		WithArgs("free:purch_1", "purch_1", int64(9), "usr_1", "", int64(0), int64(5000), int64(0), int64(0), "EUR", "", model.SalePaid, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("DELETE FROM sale_lines").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(200)))
	mock.ExpectExec("INSERT INTO entitlements").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO entitlements").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE ticket_types").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO payment_events").WillReturnResult(sqlmock.NewResult(1, 1))

	err := engine.upsertLedgerFree(context.Background(), op)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProrateDiscount(t *testing.T) {
	lines := []model.LedgerLine{
		{TicketTypeID: 1, Quantity: 2, UnitPriceCents: 3000},
		{TicketTypeID: 2, Quantity: 1, UnitPriceCents: 4000},
	}

	shares := prorateDiscount(lines, 1000)
	assert.Equal(t, int64(600), shares[0])
	assert.Equal(t, int64(400), shares[1])
	assert.Equal(t, int64(1000), shares[0]+shares[1])
}

func TestProrateDiscount_RemainderLandsOnLastLine(t *testing.T) {
	lines := []model.LedgerLine{
		{TicketTypeID: 1, Quantity: 1, UnitPriceCents: 1000},
		{TicketTypeID: 2, Quantity: 1, UnitPriceCents: 1000},
		{TicketTypeID: 3, Quantity: 1, UnitPriceCents: 1000},
	}

	shares := prorateDiscount(lines, 100)
	assert.Equal(t, int64(33), shares[0])
	assert.Equal(t, int64(33), shares[1])
	assert.Equal(t, int64(34), shares[2])
}

func TestProrateDiscount_NoDiscount(t *testing.T) {
	shares := prorateDiscount([]model.LedgerLine{{TicketTypeID: 1, Quantity: 1, UnitPriceCents: 1000}}, 0)
	assert.Equal(t, []int64{0}, shares)
}
