package model

import "time"

// SaleStatus tracks the lifecycle of a sale summary.
type SaleStatus string

const (
	SalePaid     SaleStatus = "PAID"
	SaleRefunded SaleStatus = "REFUNDED"
	SaleDisputed SaleStatus = "DISPUTED"
)

// SaleSummary is the read-model header row for one purchase, keyed by the
// payment intent that funded it.
type SaleSummary struct {
	ID               int64      `json:"-"`
	PaymentIntentID  string     `json:"payment_intent_id"`
	PurchaseID       string     `json:"purchase_id"`
	EventID          int64      `json:"event_id"`
	UserID           string     `json:"user_id,omitempty"`
	OwnerIdentityID  string     `json:"owner_identity_id,omitempty"`
	PromoCodeID      int64      `json:"promo_code_id,omitempty"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	DiscountCents    int64      `json:"discount_cents"`
	PlatformFeeCents int64      `json:"platform_fee_cents"`
	Currency         string     `json:"currency"`
	FeeMode          string     `json:"fee_mode,omitempty"`
	Status           SaleStatus `json:"status"`
	DisputeReason    string     `json:"dispute_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SaleLine is one priced line under a sale summary.
type SaleLine struct {
	ID                   int64 `json:"-"`
	SaleSummaryID        int64 `json:"sale_summary_id"`
	EventID              int64 `json:"event_id"`
	TicketTypeID         int64 `json:"ticket_type_id"`
	PromoCodeID          int64 `json:"promo_code_id,omitempty"`
	Quantity             int   `json:"quantity"`
	UnitPriceCents       int64 `json:"unit_price_cents"`
	DiscountPerUnitCents int64 `json:"discount_per_unit_cents"`
	GrossCents           int64 `json:"gross_cents"`
	NetCents             int64 `json:"net_cents"`
	PlatformFeeCents     int64 `json:"platform_fee_cents"`
}

// EntitlementStatus tracks whether a grant of access is usable.
type EntitlementStatus string

const (
	EntitlementActive    EntitlementStatus = "ACTIVE"
	EntitlementRefunded  EntitlementStatus = "REFUNDED"
	EntitlementSuspended EntitlementStatus = "SUSPENDED"
)

// EntitlementType distinguishes what kind of access a grant confers.
type EntitlementType string

const (
	EntitlementEventTicket EntitlementType = "EVENT_TICKET"
	EntitlementTournament  EntitlementType = "TOURNAMENT_ENTRY"
)

// Entitlement is the system-of-record grant of access issued per unit of
// quantity on a sale line. The composite key (purchase, ticket type, unit
// index, owner key, type) makes issuance an idempotent upsert; sale lines
// are rebuilt on replay, so the line ID cannot be part of the identity.
type Entitlement struct {
	ID              string            `json:"id"`
	PurchaseID      string            `json:"purchase_id"`
	SaleLineID      int64             `json:"sale_line_id"`
	LineItemIndex   int               `json:"line_item_index"`
	OwnerKey        string            `json:"owner_key"`
	OwnerUserID     string            `json:"owner_user_id,omitempty"`
	OwnerIdentityID string            `json:"owner_identity_id,omitempty"`
	EventID         int64             `json:"event_id"`
	TicketTypeID    int64             `json:"ticket_type_id"`
	Type            EntitlementType   `json:"type"`
	Status          EntitlementStatus `json:"status"`
	QrSecret        string            `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// LedgerUpsertLine pairs a computed sale line with the entitlements to
// issue under it, one per unit of quantity.
type LedgerUpsertLine struct {
	Line         SaleLine
	Entitlements []Entitlement
}

// LedgerUpsert is the fully computed write set for one purchase. The
// datasource applies it in a single transaction so replays either land
// whole or not at all.
type LedgerUpsert struct {
	Summary SaleSummary
	Lines   []LedgerUpsertLine
}

// PaymentEventStatus reflects the last reconciliation outcome for a
// payment intent.
type PaymentEventStatus string

const (
	PaymentEventOK       PaymentEventStatus = "OK"
	PaymentEventError    PaymentEventStatus = "ERROR"
	PaymentEventRefunded PaymentEventStatus = "REFUNDED"
)

// PaymentEvent is the per-intent status ledger handlers update after each
// fulfillment or refund run.
type PaymentEvent struct {
	ID              int64              `json:"-"`
	PaymentIntentID string             `json:"payment_intent_id"`
	PurchaseID      string             `json:"purchase_id,omitempty"`
	EventID         int64              `json:"event_id,omitempty"`
	UserID          string             `json:"user_id,omitempty"`
	Status          PaymentEventStatus `json:"status"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// EmailOutboxEntry records one templated email keyed by a dedupe token so
// repeated sends are no-ops.
type EmailOutboxEntry struct {
	ID            int64                  `json:"-"`
	DedupeKey     string                 `json:"dedupe_key"`
	TemplateKey   string                 `json:"template_key"`
	Recipient     string                 `json:"recipient"`
	PurchaseID    string                 `json:"purchase_id"`
	EntitlementID string                 `json:"entitlement_id,omitempty"`
	Status        OutboxStatus           `json:"status"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	SentAt        *time.Time             `json:"sent_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// PromoRedemption marks a promo code as consumed by a purchase. The
// (promo code, purchase) pair is unique, which is what makes the apply
// operation replay-safe.
type PromoRedemption struct {
	ID          int64     `json:"-"`
	PromoCodeID int64     `json:"promo_code_id"`
	PurchaseID  string    `json:"purchase_id"`
	UserID      string    `json:"user_id,omitempty"`
	GuestEmail  string    `json:"guest_email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailIdentity links a normalized email address to a user account; guest
// purchases are claimed by moving entitlements onto this link.
type EmailIdentity struct {
	ID              string     `json:"id"`
	EmailNormalized string     `json:"email_normalized"`
	UserID          string     `json:"user_id"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
