package model

import "time"

// OutboxStatus is the delivery state of a notification outbox item.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSending OutboxStatus = "SENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxFailed  OutboxStatus = "FAILED"
)

// NotificationType is the set of outbox notification kinds the renderer
// knows how to build. Producers may enqueue new kinds before the renderer
// learns them; those fall through to the generic rendering.
type NotificationType string

const (
	NotificationPairingInvite    NotificationType = "PAIRING_INVITE"
	NotificationPairingConfirmed NotificationType = "PAIRING_CONFIRMED"
	NotificationMatchChanged     NotificationType = "MATCH_CHANGED"
	NotificationMatchResult      NotificationType = "MATCH_RESULT"
	NotificationNextOpponent     NotificationType = "NEXT_OPPONENT"
	NotificationChampion         NotificationType = "CHAMPION"
	NotificationEliminated       NotificationType = "ELIMINATED"
	NotificationBracketPublished NotificationType = "BRACKET_PUBLISHED"
	NotificationTournamentEve    NotificationType = "TOURNAMENT_EVE_REMINDER"
	NotificationGeneric          NotificationType = "SYSTEM_ANNOUNCE"
)

// outboxErrorLimit caps stored delivery errors so a failing downstream
// cannot bloat the table with multi-kilobyte stack traces.
const outboxErrorLimit = 200

// NotificationOutboxItem is a durably recorded intent-to-notify. Items
// whose retries reach the cap stay FAILED and are excluded from selection
// by the retries predicate.
type NotificationOutboxItem struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	NotificationType NotificationType       `json:"notification_type"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
	Status           OutboxStatus           `json:"status"`
	Retries          int                    `json:"retries"`
	LastError        string                 `json:"last_error,omitempty"`
	SentAt           *time.Time             `json:"sent_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// PayloadString returns the string payload field under key.
func (item *NotificationOutboxItem) PayloadString(key string) string {
	if item.Payload == nil {
		return ""
	}
	s, _ := item.Payload[key].(string)
	return s
}

// PayloadInt64 reads a numeric payload field.
func (item *NotificationOutboxItem) PayloadInt64(key string) int64 {
	if item.Payload == nil {
		return 0
	}
	if v, ok := item.Payload[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// TruncateError clips a delivery error message to the stored limit.
func TruncateError(message string) string {
	if len(message) > outboxErrorLimit {
		return message[:outboxErrorLimit]
	}
	return message
}

// NotificationPriority orders notifications in the user-facing feed.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "NORMAL"
	PriorityHigh   NotificationPriority = "HIGH"
)

// Notification is the user-visible record a successful outbox delivery
// creates, exactly once per item via SourceEventID.
type Notification struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Type           NotificationType       `json:"type"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	CtaUrl         string                 `json:"cta_url,omitempty"`
	CtaLabel       string                 `json:"cta_label,omitempty"`
	Priority       NotificationPriority   `json:"priority"`
	FromUserID     string                 `json:"from_user_id,omitempty"`
	OrganizationID int64                  `json:"organization_id,omitempty"`
	EventID        int64                  `json:"event_id,omitempty"`
	SourceEventID  string                 `json:"source_event_id,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	IsRead         bool                   `json:"is_read"`
	CreatedAt      time.Time              `json:"created_at"`
}
