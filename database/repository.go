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
	"time"

	"github.com/courtsidehq/courtside/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	operation    // Interface for the durable operation queue
	outbox       // Interface for the notification outbox and feed
	sale         // Interface for sale summaries and the entitlement ledger
	paymentEvent // Interface for per-intent payment status rows
	email        // Interface for the email outbox and email identities
	catalog      // Interface for event, ticket and tournament lookups
	promo        // Interface for promo code redemptions
}

// operation defines methods for the durable operation queue.
type operation interface {
	EnqueueOperation(ctx context.Context, op *model.Operation) (*model.Operation, error)                             // Inserts an operation, returning the existing row on a dedupe-key hit
	SelectClaimableOperations(ctx context.Context, now time.Time, limit int) ([]*model.Operation, error)             // Retrieves unclaimed PENDING and retry-due FAILED operations
	ClaimOperation(ctx context.Context, id int64, now time.Time) (bool, error)                                       // Atomically claims one operation; false means another worker won
	RecordOperationSuccess(ctx context.Context, id int64) error                                                      // Marks an operation SUCCEEDED and clears its retry state
	RecordOperationFailure(ctx context.Context, id int64, lastError string, nextRetryAt time.Time) error             // Marks an operation FAILED and schedules its next attempt
	DeadLetterOperation(ctx context.Context, id int64, lastError string) error                                       // Parks an operation in the dead-letter state
	ReapStaleOperations(ctx context.Context, cutoff time.Time) (int64, error)                                        // Releases RUNNING operations whose lease expired before cutoff
	GetOperationByID(ctx context.Context, id int64) (*model.Operation, error)                                        // Retrieves an operation by ID
	GetOperationByDedupeKey(ctx context.Context, dedupeKey string) (*model.Operation, error)                         // Retrieves an operation by its dedupe key
	ListDeadLetterOperations(ctx context.Context, limit, offset int) ([]*model.Operation, error)                     // Retrieves dead-lettered operations for triage
}

// outbox defines methods for the notification outbox and the notification feed.
type outbox interface {
	CreateOutboxItem(ctx context.Context, item *model.NotificationOutboxItem) (*model.NotificationOutboxItem, error) // Records an intent-to-notify
	SelectPendingOutboxItems(ctx context.Context, maxRetries, limit int) ([]*model.NotificationOutboxItem, error)    // Retrieves deliverable outbox items, oldest first
	ClaimOutboxItem(ctx context.Context, id string, now time.Time) (bool, error)                                     // Atomically moves an item to SENDING; false means another worker won
	ReapStaleOutboxItems(ctx context.Context, cutoff time.Time) (int64, error)                                       // Releases SENDING items whose lease expired before cutoff
	MarkOutboxItemSent(ctx context.Context, id string) error                                                         // Marks an item delivered
	MarkOutboxItemFailed(ctx context.Context, id string, lastError string) error                                     // Records a delivery failure and bumps the retry counter
	ListExhaustedOutboxItems(ctx context.Context, maxRetries, limit int) ([]*model.NotificationOutboxItem, error)    // Retrieves items whose retries are spent
	CreateNotification(ctx context.Context, notification *model.Notification) (bool, error)                          // Upserts a feed notification by source event; false on replay
}

// sale defines methods for sale summaries and the entitlement ledger.
type sale interface {
	ApplyLedgerUpsert(ctx context.Context, upsert *model.LedgerUpsert) (map[int64]int, error)       // Applies a purchase write set transactionally; returns created entitlements per ticket type
	GetSaleSummaryByID(ctx context.Context, id int64) (*model.SaleSummary, error)                  // Retrieves a sale summary by row id
	GetSaleSummaryByPaymentIntent(ctx context.Context, paymentIntentID string) (*model.SaleSummary, error) // Retrieves a sale summary by payment intent
	GetSaleSummaryByPurchase(ctx context.Context, purchaseID string) (*model.SaleSummary, error)    // Retrieves a sale summary by purchase
	UpdateSaleStatus(ctx context.Context, paymentIntentID string, status model.SaleStatus, disputeReason string) error // Updates a sale's lifecycle status
	GetSaleLines(ctx context.Context, saleSummaryID int64) ([]model.SaleLine, error)                // Retrieves the lines under a sale summary
	GetEntitlementsByPurchase(ctx context.Context, purchaseID string) ([]model.Entitlement, error)  // Retrieves the entitlements issued for a purchase
	UpdateEntitlementsStatusByPurchase(ctx context.Context, purchaseID string, status model.EntitlementStatus) (int64, error) // Updates all entitlements of a purchase
	TransferGuestEntitlements(ctx context.Context, purchaseID, fromOwnerKey, toOwnerKey, userID string) (int64, error) // Moves guest entitlements onto a claimed account
	AdjustSoldQuantity(ctx context.Context, ticketTypeID int64, delta int) error                    // Adjusts a ticket type's sold counter
}

// paymentEvent defines methods for the per-intent payment status rows.
type paymentEvent interface {
	UpsertPaymentEvent(ctx context.Context, event *model.PaymentEvent) error                                          // Upserts the status row for a payment intent
	GetPaymentEventByIntent(ctx context.Context, paymentIntentID string) (*model.PaymentEvent, error)                 // Retrieves the status row for a payment intent
}

// email defines methods for the email outbox and email identities.
type email interface {
	QueueEmail(ctx context.Context, entry *model.EmailOutboxEntry) (bool, error)            // Inserts an email by dedupe key; false on replay
	GetEmailOutboxEntry(ctx context.Context, dedupeKey string) (*model.EmailOutboxEntry, error) // Retrieves a queued email by dedupe key
	MarkEmailSent(ctx context.Context, dedupeKey string) error                              // Marks a queued email delivered
	MarkEmailFailed(ctx context.Context, dedupeKey string, errorCode string) error          // Records an email delivery failure
	UpsertEmailIdentity(ctx context.Context, email, userID string) (*model.EmailIdentity, error) // Links a normalized email to a user account
	GetEmailIdentity(ctx context.Context, email string) (*model.EmailIdentity, error)       // Retrieves the identity link for a normalized email
}

// catalog defines lookup methods for events, tickets and tournament entities.
type catalog interface {
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)         // Retrieves an event by ID
	GetTicketTypeByID(ctx context.Context, id int64) (*model.TicketType, error) // Retrieves a ticket type by ID
	GetPairingByID(ctx context.Context, id int64) (*model.Pairing, error)     // Retrieves a pairing by ID
	GetMatchSlotByID(ctx context.Context, id int64) (*model.MatchSlot, error) // Retrieves a match slot by ID
	GetProfileByID(ctx context.Context, id string) (*model.Profile, error)    // Retrieves a user profile by ID
}

// promo defines methods for promo code redemptions.
type promo interface {
	RedeemPromoCode(ctx context.Context, redemption *model.PromoRedemption) (bool, error) // Records a redemption; false when the purchase already redeemed it
}
