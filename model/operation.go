package model

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// OperationStatus is the lifecycle state of a queued operation.
type OperationStatus string

const (
	OperationPending    OperationStatus = "PENDING"
	OperationRunning    OperationStatus = "RUNNING"
	OperationSucceeded  OperationStatus = "SUCCEEDED"
	OperationFailed     OperationStatus = "FAILED"
	OperationDeadLetter OperationStatus = "DEAD_LETTER"
)

// OperationType is the closed set of deferred work the engine executes.
type OperationType string

const (
	OpProcessProviderEvent     OperationType = "PROCESS_PROVIDER_EVENT"
	OpFulfillPayment           OperationType = "FULFILL_PAYMENT"
	OpUpsertLedger             OperationType = "UPSERT_LEDGER"
	OpUpsertLedgerFree         OperationType = "UPSERT_LEDGER_FREE"
	OpProcessRefundSingle      OperationType = "PROCESS_REFUND_SINGLE"
	OpMarkDispute              OperationType = "MARK_DISPUTE"
	OpSendEmailReceipt         OperationType = "SEND_EMAIL_RECEIPT"
	OpSendNotificationPurchase OperationType = "SEND_NOTIFICATION_PURCHASE"
	OpApplyPromoRedemption     OperationType = "APPLY_PROMO_REDEMPTION"
	OpClaimGuestPurchase       OperationType = "CLAIM_GUEST_PURCHASE"
	OpSendEmailOutbox          OperationType = "SEND_EMAIL_OUTBOX"
)

// Operation is a persisted unit of deferred work. Producers insert rows
// with a stable DedupeKey (insert-or-ignore); only the batch worker
// mutates them afterwards, and rows are never deleted so the dead-letter
// set stays queryable.
type Operation struct {
	ID              int64                  `json:"id"`
	OperationType   OperationType          `json:"operation_type"`
	DedupeKey       string                 `json:"dedupe_key"`
	Status          OperationStatus        `json:"status"`
	Attempts        int                    `json:"attempts"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
	PaymentIntentID string                 `json:"payment_intent_id,omitempty"`
	PurchaseID      string                 `json:"purchase_id,omitempty"`
	ProviderEventID string                 `json:"provider_event_id,omitempty"`
	EventID         int64                  `json:"event_id,omitempty"`
	LastError       string                 `json:"last_error,omitempty"`
	LockedAt        *time.Time             `json:"locked_at,omitempty"`
	NextRetryAt     *time.Time             `json:"next_retry_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// PayloadString returns the string payload field under key, falling back
// to the empty string when absent or of another type.
func (op *Operation) PayloadString(key string) string {
	if op.Payload == nil {
		return ""
	}
	s, _ := op.Payload[key].(string)
	return s
}

// PayloadInt64 reads a numeric payload field, accepting both JSON numbers
// and numeric strings since producers are not consistent about it.
func (op *Operation) PayloadInt64(key string) int64 {
	if op.Payload == nil {
		return 0
	}
	switch v := op.Payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		var n int64
		if err := json.Unmarshal([]byte(v), &n); err == nil {
			return n
		}
	}
	return 0
}

// ResolvePurchaseID prefers the correlation column over the payload copy.
func (op *Operation) ResolvePurchaseID() string {
	if op.PurchaseID != "" {
		return op.PurchaseID
	}
	return op.PayloadString("purchaseId")
}

// ResolvePaymentIntentID prefers the correlation column over the payload copy.
func (op *Operation) ResolvePaymentIntentID() string {
	if op.PaymentIntentID != "" {
		return op.PaymentIntentID
	}
	return op.PayloadString("paymentIntentId")
}

// ResolveEventID prefers the correlation column over the payload copy.
func (op *Operation) ResolveEventID() int64 {
	if op.EventID != 0 {
		return op.EventID
	}
	return op.PayloadInt64("eventId")
}

// LedgerLine is one priced line of a ledger upsert payload.
type LedgerLine struct {
	TicketTypeID   int64  `json:"ticketTypeId"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Currency       string `json:"currency,omitempty"`
}

func (l LedgerLine) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.TicketTypeID, validation.Required),
		validation.Field(&l.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&l.UnitPriceCents, validation.Min(0)),
	)
}

// UpsertLedgerPayload is the typed form of UPSERT_LEDGER[_FREE] payloads.
type UpsertLedgerPayload struct {
	PurchaseID       string       `json:"purchaseId"`
	EventID          int64        `json:"eventId"`
	Lines            []LedgerLine `json:"lines"`
	Currency         string       `json:"currency"`
	UserID           string       `json:"userId"`
	OwnerIdentityID  string       `json:"ownerIdentityId"`
	GuestEmail       string       `json:"guestEmail"`
	PromoCodeID      int64        `json:"promoCodeId"`
	SubtotalCents    int64        `json:"subtotalCents"`
	DiscountCents    int64        `json:"discountCents"`
	PlatformFeeCents int64        `json:"platformFeeCents"`
	FeeMode          string       `json:"feeMode"`
}

func (p UpsertLedgerPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PurchaseID, validation.Required),
		validation.Field(&p.EventID, validation.Required),
		validation.Field(&p.Lines, validation.Required, validation.Length(1, 0)),
	)
}

// ProviderEventPayload is the typed form of PROCESS_PROVIDER_EVENT payloads.
type ProviderEventPayload struct {
	ProviderEventType string `json:"providerEventType"`
	PaymentIntentID   string `json:"paymentIntentId"`
	ChargeID          string `json:"chargeId"`
	PaymentID         string `json:"paymentId"`
	DisputeReason     string `json:"disputeReason"`
}

func (p ProviderEventPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProviderEventType, validation.Required),
	)
}

// SendEmailOutboxPayload is the typed form of SEND_EMAIL_OUTBOX payloads.
type SendEmailOutboxPayload struct {
	TemplateKey   string                 `json:"templateKey"`
	Recipient     string                 `json:"recipient"`
	PurchaseID    string                 `json:"purchaseId"`
	EntitlementID string                 `json:"entitlementId"`
	DedupeKey     string                 `json:"dedupeKey"`
	Template      map[string]interface{} `json:"payload"`
}

func (p SendEmailOutboxPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.TemplateKey, validation.Required),
		validation.Field(&p.Recipient, validation.Required),
		validation.Field(&p.PurchaseID, validation.Required),
	)
}

// ClaimGuestPurchasePayload is the typed form of CLAIM_GUEST_PURCHASE payloads.
type ClaimGuestPurchasePayload struct {
	PurchaseID string `json:"purchaseId"`
	UserID     string `json:"userId"`
	UserEmail  string `json:"userEmail"`
}

func (p ClaimGuestPurchasePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PurchaseID, validation.Required),
		validation.Field(&p.UserID, validation.Required),
		validation.Field(&p.UserEmail, validation.Required),
	)
}

// DecodePayload re-marshals the opaque payload bag into a typed payload
// struct. Handlers decode and validate before touching downstream state,
// so malformed payloads fail as permanent errors instead of consuming the
// retry budget.
func DecodePayload(payload map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
