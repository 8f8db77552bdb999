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

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/courtsidehq/courtside/model"
	"github.com/stretchr/testify/assert"
)

func ledgerUpsertFixture() *model.LedgerUpsert {
	return &model.LedgerUpsert{
		Summary: model.SaleSummary{
			PaymentIntentID: "pi_123",
			PurchaseID:      "purch_1",
			EventID:         9,
			UserID:          "usr_1",
			SubtotalCents:   5000,
			Currency:        "EUR",
			Status:          model.SalePaid,
		},
		Lines: []model.LedgerUpsertLine{
			{
				Line: model.SaleLine{
					EventID:        9,
					TicketTypeID:   7,
					Quantity:       2,
					UnitPriceCents: 2500,
					GrossCents:     5000,
					NetCents:       5000,
				},
				Entitlements: []model.Entitlement{
					{
						ID:            "ent_1",
						PurchaseID:    "purch_1",
						LineItemIndex: 0,
						OwnerKey:      "user:usr_1",
						OwnerUserID:   "usr_1",
						EventID:       9,
						TicketTypeID:  7,
						Type:          model.EntitlementEventTicket,
						Status:        model.EntitlementActive,
					},
					{
						ID:            "ent_2",
						PurchaseID:    "purch_1",
						LineItemIndex: 1,
						OwnerKey:      "user:usr_1",
						OwnerUserID:   "usr_1",
						EventID:       9,
						TicketTypeID:  7,
						Type:          model.EntitlementEventTicket,
						Status:        model.EntitlementActive,
					},
				},
			},
		},
	}
}

func TestApplyLedgerUpsert_FirstRunIssuesEntitlements(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	upsert := ledgerUpsertFixture()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sale_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("DELETE FROM sale_lines").
		WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(200)))
	mock.ExpectExec("INSERT INTO entitlements").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO entitlements").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE ticket_types").
		WithArgs(int64(7), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := ds.ApplyLedgerUpsert(context.Background(), upsert)
	assert.NoError(t, err)
	assert.Equal(t, map[int64]int{7: 2}, created)
	assert.Equal(t, int64(100), upsert.Summary.ID)
	assert.Equal(t, int64(200), upsert.Lines[0].Line.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A replayed upsert rebuilds lines but hits the entitlement dedupe key, so
// no counter update runs and sold quantities stay flat.
func TestApplyLedgerUpsert_ReplayDoesNotDoubleCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	upsert := ledgerUpsertFixture()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sale_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("DELETE FROM sale_lines").
		WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(201)))
	mock.ExpectExec("INSERT INTO entitlements").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO entitlements").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	created, err := ds.ApplyLedgerUpsert(context.Background(), upsert)
	assert.NoError(t, err)
	assert.Empty(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyLedgerUpsert_RollsBackOnLineFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	upsert := ledgerUpsertFixture()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sale_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("DELETE FROM sale_lines").
		WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO sale_lines").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = ds.ApplyLedgerUpsert(context.Background(), upsert)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSaleSummaryByPaymentIntent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "payment_intent_id", "purchase_id", "event_id", "user_id", "owner_identity_id", "promo_code_id",
		"subtotal_cents", "discount_cents", "platform_fee_cents", "currency", "fee_mode", "status", "dispute_reason",
		"created_at", "updated_at",
	}).AddRow(int64(100), "pi_123", "purch_1", int64(9), "usr_1", nil, nil,
		int64(5000), int64(0), int64(0), "EUR", nil, "PAID", nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").
		WithArgs("pi_123").
		WillReturnRows(rows)

	summary, err := ds.GetSaleSummaryByPaymentIntent(context.Background(), "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, "purch_1", summary.PurchaseID)
	assert.Equal(t, model.SalePaid, summary.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSaleStatus_Disputed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE sale_summaries").
		WithArgs("pi_123", model.SaleDisputed, "fraudulent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateSaleStatus(context.Background(), "pi_123", model.SaleDisputed, "fraudulent")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
