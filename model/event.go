package model

import "time"

// Event is the catalog row for a ticketed event or tournament.
type Event struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	OrganizationID int64      `json:"organization_id,omitempty"`
	TemplateType   string     `json:"template_type,omitempty"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	LocationName   string     `json:"location_name,omitempty"`
	LocationCity   string     `json:"location_city,omitempty"`
	Address        string     `json:"address,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TicketType is one sellable class of access for an event. SoldQuantity
// is the inventory counter the ledger-upsert handler increments for newly
// issued entitlements.
type TicketType struct {
	ID           int64  `json:"id"`
	EventID      int64  `json:"event_id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	MaxQuantity  int    `json:"max_quantity"`
	SoldQuantity int    `json:"sold_quantity"`
}

// Pairing is a two-player tournament entry; the invite token lets the
// invited partner accept from a notification deep link.
type Pairing struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"event_id"`
	InviteToken string    `json:"invite_token,omitempty"`
	PlayerNames []string  `json:"player_names,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Label renders the pairing for notification copy, at most two names.
func (p *Pairing) Label() string {
	if len(p.PlayerNames) == 0 {
		return "Pairing"
	}
	if len(p.PlayerNames) == 1 {
		return p.PlayerNames[0]
	}
	return p.PlayerNames[0] + " / " + p.PlayerNames[1]
}

// MatchSlot is a scheduled (or completed) match between two pairings.
type MatchSlot struct {
	ID         int64      `json:"id"`
	EventID    int64      `json:"event_id"`
	PairingAID int64      `json:"pairing_a_id,omitempty"`
	PairingBID int64      `json:"pairing_b_id,omitempty"`
	CourtName  string     `json:"court_name,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	ScoreSets  []ScoreSet `json:"score_sets,omitempty"`
	ResultType string     `json:"result_type,omitempty"`
}

// ScoreSet is one set of a match score.
type ScoreSet struct {
	TeamA int `json:"team_a"`
	TeamB int `json:"team_b"`
}

// Profile is the minimal identity projection the engine needs for email
// fallback lookups.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}
