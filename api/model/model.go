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
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/courtsidehq/courtside/model"
)

// EnqueueOperation is the request body for recording deferred work.
// DedupeKey is the idempotency handle: re-posting the same key returns
// the existing operation instead of creating another.
type EnqueueOperation struct {
	OperationType   string                 `json:"operation_type"`
	DedupeKey       string                 `json:"dedupe_key"`
	Payload         map[string]interface{} `json:"payload"`
	PaymentIntentID string                 `json:"payment_intent_id"`
	PurchaseID      string                 `json:"purchase_id"`
	ProviderEventID string                 `json:"provider_event_id"`
	EventID         int64                  `json:"event_id"`
}

func (e *EnqueueOperation) ValidateEnqueueOperation() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.OperationType, validation.Required),
		validation.Field(&e.DedupeKey, validation.Required),
	)
}

func (e *EnqueueOperation) ToOperation() *model.Operation {
	return &model.Operation{
		OperationType:   model.OperationType(e.OperationType),
		DedupeKey:       e.DedupeKey,
		Payload:         e.Payload,
		PaymentIntentID: e.PaymentIntentID,
		PurchaseID:      e.PurchaseID,
		ProviderEventID: e.ProviderEventID,
		EventID:         e.EventID,
	}
}

// QueueNotification is the request body for recording an intent-to-notify.
type QueueNotification struct {
	UserID           string                 `json:"user_id"`
	NotificationType string                 `json:"notification_type"`
	Payload          map[string]interface{} `json:"payload"`
}

func (q *QueueNotification) ValidateQueueNotification() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.UserID, validation.Required),
		validation.Field(&q.NotificationType, validation.Required),
	)
}

func (q *QueueNotification) ToOutboxItem() *model.NotificationOutboxItem {
	return &model.NotificationOutboxItem{
		UserID:           q.UserID,
		NotificationType: model.NotificationType(q.NotificationType),
		Payload:          q.Payload,
	}
}
