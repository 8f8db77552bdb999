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
	"fmt"
	"strings"
	"time"

	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/model"
)

const rendererCacheTTL = 5 * time.Minute

// renderNotification builds the user-facing notification for one outbox
// item. Types the renderer does not know fall through to the generic
// rendering, so producers can ship new kinds ahead of this code. Entity
// lookups come through the read-through cache; a missing entity is a
// permanent NOT_FOUND from the datasource, which stops retries from
// hammering a deleted tournament.
func (c *Courtside) renderNotification(ctx context.Context, item *model.NotificationOutboxItem) (*model.Notification, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	baseURL := conf.Server.BaseURL

	notification := &model.Notification{
		UserID:        item.UserID,
		Type:          item.NotificationType,
		Priority:      model.PriorityNormal,
		SourceEventID: item.ID,
		Payload:       item.Payload,
		EventID:       item.PayloadInt64("eventId"),
		FromUserID:    item.PayloadString("fromUserId"),
	}

	switch item.NotificationType {
	case model.NotificationPairingInvite:
		pairing, err := c.cachedPairing(ctx, item.PayloadInt64("pairingId"))
		if err != nil {
			return nil, err
		}
		event, err := c.cachedEvent(ctx, pairing.EventID)
		if err != nil {
			return nil, err
		}
		inviterName := "A player"
		if fromUserID := item.PayloadString("fromUserId"); fromUserID != "" {
			if profile, err := c.cachedProfile(ctx, fromUserID); err == nil && profile.FullName != "" {
				inviterName = profile.FullName
			}
		}
		notification.Title = "Partner invite"
		notification.Body = fmt.Sprintf("%s invited you to play %s together.", inviterName, event.Title)
		notification.Priority = model.PriorityHigh
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/pairings/invite/%s", baseURL, pairing.InviteToken)
		notification.CtaLabel = "Respond"

	case model.NotificationPairingConfirmed:
		pairing, err := c.cachedPairing(ctx, item.PayloadInt64("pairingId"))
		if err != nil {
			return nil, err
		}
		event, err := c.cachedEvent(ctx, pairing.EventID)
		if err != nil {
			return nil, err
		}
		notification.Title = "Pairing confirmed"
		notification.Body = fmt.Sprintf("%s is locked in for %s.", pairing.Label(), event.Title)
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s", baseURL, event.Slug)
		notification.CtaLabel = "View event"

	case model.NotificationMatchChanged:
		slot, err := c.cachedMatchSlot(ctx, item.PayloadInt64("matchSlotId"))
		if err != nil {
			return nil, err
		}
		event, err := c.cachedEvent(ctx, slot.EventID)
		if err != nil {
			return nil, err
		}
		notification.Title = "Schedule update"
		notification.Body = matchScheduleLine(slot, event)
		notification.Priority = model.PriorityHigh
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s/schedule", baseURL, event.Slug)
		notification.CtaLabel = "View schedule"

	case model.NotificationMatchResult:
		slot, err := c.cachedMatchSlot(ctx, item.PayloadInt64("matchSlotId"))
		if err != nil {
			return nil, err
		}
		event, err := c.cachedEvent(ctx, slot.EventID)
		if err != nil {
			return nil, err
		}
		notification.Title = "Match result"
		notification.Body = fmt.Sprintf("Result recorded: %s.", formatScore(slot))
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s/bracket", baseURL, event.Slug)
		notification.CtaLabel = "View bracket"

	case model.NotificationNextOpponent:
		opponent, err := c.cachedPairing(ctx, item.PayloadInt64("opponentPairingId"))
		if err != nil {
			return nil, err
		}
		event, err := c.cachedEvent(ctx, opponent.EventID)
		if err != nil {
			return nil, err
		}
		notification.Title = "Next opponent"
		notification.Body = fmt.Sprintf("You play %s next at %s.", opponent.Label(), event.Title)
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s/schedule", baseURL, event.Slug)
		notification.CtaLabel = "View schedule"

	case model.NotificationChampion:
		event, err := c.cachedEvent(ctx, item.PayloadInt64("eventId"))
		if err != nil {
			return nil, err
		}
		notification.Title = "Champions!"
		notification.Body = fmt.Sprintf("You won %s. Congratulations!", event.Title)
		notification.Priority = model.PriorityHigh
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s", baseURL, event.Slug)
		notification.CtaLabel = "View event"

	case model.NotificationEliminated:
		event, err := c.cachedEvent(ctx, item.PayloadInt64("eventId"))
		if err != nil {
			return nil, err
		}
		notification.Title = "Tournament update"
		notification.Body = fmt.Sprintf("Your run at %s has ended. Thanks for playing!", event.Title)
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s/bracket", baseURL, event.Slug)
		notification.CtaLabel = "View bracket"

	case model.NotificationBracketPublished:
		event, err := c.cachedEvent(ctx, item.PayloadInt64("eventId"))
		if err != nil {
			return nil, err
		}
		notification.Title = "Bracket published"
		notification.Body = fmt.Sprintf("The bracket for %s is out.", event.Title)
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s/bracket", baseURL, event.Slug)
		notification.CtaLabel = "View bracket"

	case model.NotificationTournamentEve:
		event, err := c.cachedEvent(ctx, item.PayloadInt64("eventId"))
		if err != nil {
			return nil, err
		}
		notification.Title = "Starting soon"
		notification.Body = tournamentEveLine(event)
		notification.EventID = event.ID
		notification.CtaUrl = fmt.Sprintf("%s/events/%s", baseURL, event.Slug)
		notification.CtaLabel = "View event"

	default:
		// Generic fallback for kinds this build does not know.
		notification.Title = item.PayloadString("title")
		if notification.Title == "" {
			notification.Title = "Courtside"
		}
		notification.Body = item.PayloadString("body")
		if notification.Body == "" {
			notification.Body = "You have a new notification."
		}
		if ctaUrl := item.PayloadString("ctaUrl"); ctaUrl != "" {
			notification.CtaUrl = ctaUrl
			notification.CtaLabel = item.PayloadString("ctaLabel")
		}
	}

	return notification, nil
}

func matchScheduleLine(slot *model.MatchSlot, event *model.Event) string {
	parts := []string{fmt.Sprintf("Your match at %s moved", event.Title)}
	if slot.CourtName != "" {
		parts = append(parts, fmt.Sprintf("to %s", slot.CourtName))
	}
	if slot.StartTime != nil {
		parts = append(parts, fmt.Sprintf("at %s", slot.StartTime.Format("Mon 15:04")))
	}
	return strings.Join(parts, " ") + "."
}

func formatScore(slot *model.MatchSlot) string {
	if len(slot.ScoreSets) == 0 {
		if slot.ResultType != "" {
			return slot.ResultType
		}
		return "result pending"
	}
	sets := make([]string, 0, len(slot.ScoreSets))
	for _, set := range slot.ScoreSets {
		sets = append(sets, fmt.Sprintf("%d-%d", set.TeamA, set.TeamB))
	}
	return strings.Join(sets, " ")
}

func tournamentEveLine(event *model.Event) string {
	if event.StartsAt == nil {
		return fmt.Sprintf("%s starts soon. Check your schedule.", event.Title)
	}
	return fmt.Sprintf("%s starts %s. Check your schedule.", event.Title, event.StartsAt.Format("Monday 15:04"))
}

func (c *Courtside) cachedEvent(ctx context.Context, id int64) (*model.Event, error) {
	var event model.Event
	key := fmt.Sprintf("event:%d", id)
	if err := c.cache.Get(ctx, key, &event); err == nil && event.ID != 0 {
		return &event, nil
	}

	fresh, err := c.datasource.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, fresh, rendererCacheTTL)
	return fresh, nil
}

func (c *Courtside) cachedPairing(ctx context.Context, id int64) (*model.Pairing, error) {
	var pairing model.Pairing
	key := fmt.Sprintf("pairing:%d", id)
	if err := c.cache.Get(ctx, key, &pairing); err == nil && pairing.ID != 0 {
		return &pairing, nil
	}

	fresh, err := c.datasource.GetPairingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, fresh, rendererCacheTTL)
	return fresh, nil
}

func (c *Courtside) cachedMatchSlot(ctx context.Context, id int64) (*model.MatchSlot, error) {
	var slot model.MatchSlot
	key := fmt.Sprintf("match-slot:%d", id)
	if err := c.cache.Get(ctx, key, &slot); err == nil && slot.ID != 0 {
		return &slot, nil
	}

	fresh, err := c.datasource.GetMatchSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, fresh, rendererCacheTTL)
	return fresh, nil
}

func (c *Courtside) cachedProfile(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	key := "profile:" + id
	if err := c.cache.Get(ctx, key, &profile); err == nil && profile.ID != "" {
		return &profile, nil
	}

	fresh, err := c.datasource.GetProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, fresh, rendererCacheTTL)
	return fresh, nil
}
