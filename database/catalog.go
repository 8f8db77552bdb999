package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/model"
)

func (d Datasource) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	event := model.Event{}
	var organizationID sql.NullInt64
	var templateType, timezone, locationName, locationCity, address sql.NullString
	var startsAt, endsAt sql.NullTime

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, title, slug, organization_id, template_type, starts_at, ends_at, timezone, location_name, location_city, address, created_at
		FROM events
		WHERE id = $1
	`, id)

	err := row.Scan(&event.ID, &event.Title, &event.Slug, &organizationID, &templateType,
		&startsAt, &endsAt, &timezone, &locationName, &locationCity, &address, &event.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Event not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve event", err)
	}

	event.OrganizationID = organizationID.Int64
	event.TemplateType = templateType.String
	event.Timezone = timezone.String
	event.LocationName = locationName.String
	event.LocationCity = locationCity.String
	event.Address = address.String
	if startsAt.Valid {
		event.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		event.EndsAt = &endsAt.Time
	}
	return &event, nil
}

func (d Datasource) GetTicketTypeByID(ctx context.Context, id int64) (*model.TicketType, error) {
	ticketType := model.TicketType{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, event_id, name, price_cents, currency, max_quantity, sold_quantity
		FROM ticket_types
		WHERE id = $1
	`, id)

	err := row.Scan(&ticketType.ID, &ticketType.EventID, &ticketType.Name, &ticketType.PriceCents,
		&ticketType.Currency, &ticketType.MaxQuantity, &ticketType.SoldQuantity)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Ticket type not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ticket type", err)
	}
	return &ticketType, nil
}

func (d Datasource) GetPairingByID(ctx context.Context, id int64) (*model.Pairing, error) {
	pairing := model.Pairing{}
	var inviteToken sql.NullString
	var playerNamesJSON []byte

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, event_id, invite_token, player_names, created_at
		FROM pairings
		WHERE id = $1
	`, id)

	err := row.Scan(&pairing.ID, &pairing.EventID, &inviteToken, &playerNamesJSON, &pairing.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Pairing not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pairing", err)
	}

	pairing.InviteToken = inviteToken.String
	if err := json.Unmarshal(playerNamesJSON, &pairing.PlayerNames); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal player names", err)
	}
	return &pairing, nil
}

func (d Datasource) GetMatchSlotByID(ctx context.Context, id int64) (*model.MatchSlot, error) {
	slot := model.MatchSlot{}
	var pairingA, pairingB sql.NullInt64
	var courtName, resultType sql.NullString
	var startTime sql.NullTime
	var scoreSetsJSON []byte

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, event_id, pairing_a_id, pairing_b_id, court_name, start_time, score_sets, result_type
		FROM match_slots
		WHERE id = $1
	`, id)

	err := row.Scan(&slot.ID, &slot.EventID, &pairingA, &pairingB, &courtName, &startTime, &scoreSetsJSON, &resultType)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Match slot not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve match slot", err)
	}

	slot.PairingAID = pairingA.Int64
	slot.PairingBID = pairingB.Int64
	slot.CourtName = courtName.String
	slot.ResultType = resultType.String
	if startTime.Valid {
		slot.StartTime = &startTime.Time
	}
	if err := json.Unmarshal(scoreSetsJSON, &slot.ScoreSets); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal score sets", err)
	}
	return &slot, nil
}

func (d Datasource) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := model.Profile{}
	var fullName, username, email sql.NullString

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, full_name, username, email
		FROM profiles
		WHERE id = $1
	`, id)

	err := row.Scan(&profile.ID, &fullName, &username, &email)
	if err == sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Profile not found", err)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve profile", err)
	}

	profile.FullName = fullName.String
	profile.Username = username.String
	profile.Email = email.String
	return &profile, nil
}
