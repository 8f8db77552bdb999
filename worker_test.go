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
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/courtside/cache"
	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/database"
	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

func newTestEngine(t *testing.T) (*Courtside, sqlmock.Sqlmock) {
	t.Helper()

	conf := &config.Configuration{}
	conf.Server.BaseURL = "https://courtside.test"
	conf.Provider.BaseURL = "https://provider.test"
	conf.Provider.Timeout = 1
	conf.Mailer.Url = "https://mailer.test"
	config.MockConfig(conf)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	testCache, err := cache.NewRedisCache([]string{mr.Addr()})
	require.NoError(t, err)

	engine := &Courtside{
		datasource: &database.Datasource{Conn: db},
		cache:      testCache,
		provider:   NewProviderClient(conf),
		mailer:     NewMailerClient(conf),
	}
	engine.fulfillment = defaultFulfillmentChain()
	engine.registerHandlers()
	return engine, mock
}

func claimableOperationRows(id int64, opType model.OperationType, attempts int, payload string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "operation_type", "dedupe_key", "status", "attempts", "payload",
		"payment_intent_id", "purchase_id", "provider_event_id", "event_id",
		"last_error", "locked_at", "next_retry_at", "created_at", "updated_at",
	}).AddRow(id, string(opType), string(opType)+":purch_1", "PENDING", attempts, []byte(payload),
		nil, "purch_1", nil, nil, nil, nil, nil, now, now)
}

func TestRunOperationsBatch_SuccessfulOperation(t *testing.T) {
	engine, mock := newTestEngine(t)

	// Reap finds nothing stale.
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM operations").
		WillReturnRows(claimableOperationRows(1, model.OpApplyPromoRedemption, 0, `{"promoCodeId":5,"purchaseId":"purch_1"}`))
	// Claim won.
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))
	// Handler records the redemption.
	mock.ExpectExec("INSERT INTO promo_redemptions").WillReturnResult(sqlmock.NewResult(1, 1))
	// Success outcome.
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := engine.RunOperationsBatch(context.Background())
	assert.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.OperationSucceeded, results[0].Status)
	assert.Equal(t, int64(1), results[0].OperationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOperationsBatch_SkipsOperationsAnotherWorkerClaimed(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM operations").
		WillReturnRows(claimableOperationRows(1, model.OpApplyPromoRedemption, 0, `{"promoCodeId":5}`))
	// Claim lost: zero rows affected.
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))

	results, err := engine.RunOperationsBatch(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOperationsBatch_TransientFailureSchedulesRetry(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM operations").
		WillReturnRows(claimableOperationRows(2, model.OpProcessRefundSingle, 0, `{"paymentIntentId":"pi_123"}`))
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))
	// Sale summary lookup hits a database error: transient.
	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").WillReturnError(assert.AnError)
	// Failure outcome reschedules.
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := engine.RunOperationsBatch(context.Background())
	assert.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.OperationFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOperationsBatch_PermanentErrorDeadLettersImmediately(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))
	// Ledger payload without lines fails validation on first attempt.
	mock.ExpectQuery("SELECT (.+) FROM operations").
		WillReturnRows(claimableOperationRows(3, model.OpUpsertLedger, 0, `{"purchaseId":"purch_1","eventId":9}`))
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))
	// Dead letter, not retry, even though four attempts remain.
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := engine.RunOperationsBatch(context.Background())
	assert.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.OperationDeadLetter, results[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOperationsBatch_ExhaustedBudgetDeadLetters(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))
	// Fifth attempt of a transient failure.
	mock.ExpectQuery("SELECT (.+) FROM operations").
		WillReturnRows(claimableOperationRows(4, model.OpProcessRefundSingle, 4, `{"paymentIntentId":"pi_123"}`))
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM sale_summaries").WillReturnError(assert.AnError)
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := engine.RunOperationsBatch(context.Background())
	assert.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.OperationDeadLetter, results[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOperationsBatch_UnknownTypeDeadLetters(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM operations").
		WillReturnRows(claimableOperationRows(5, model.OperationType("MINT_NFT"), 0, `{}`))
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE operations").WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := engine.RunOperationsBatch(context.Background())
	assert.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.OperationDeadLetter, results[0].Status)
	assert.Contains(t, results[0].Error, "unknown operation type")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueOperation_RejectsUnknownType(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.EnqueueOperation(context.Background(), &model.Operation{
		OperationType: model.OperationType("MINT_NFT"),
		DedupeKey:     "MINT_NFT:purch_1",
	})
	assert.Error(t, err)
	assert.True(t, apierror.IsPermanent(err))
}

func TestEnqueueOperation_RequiresDedupeKey(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.EnqueueOperation(context.Background(), &model.Operation{
		OperationType: model.OpFulfillPayment,
	})
	assert.Error(t, err)
}
