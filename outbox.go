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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/model"
)

// OutboxResult reports the outcome of one outbox item in a delivery pass.
type OutboxResult struct {
	ItemID string             `json:"item_id"`
	Status model.OutboxStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// RunNotificationOutbox executes one delivery pass: release expired
// SENDING leases, select deliverable items oldest first, claim each with
// a conditional update, render, and write the user-facing notification.
// Items whose claim is lost to a concurrent worker are skipped. Delivery
// failures increment the retry counter; once it reaches the cap the
// selection predicate stops picking the item up and it stays FAILED for
// triage.
func (c *Courtside) RunNotificationOutbox(ctx context.Context) ([]OutboxResult, error) {
	ctx, span := tracer.Start(ctx, "Running notification outbox")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	workerConf := conf.Worker

	now := time.Now()
	reaped, err := c.datasource.ReapStaleOutboxItems(ctx, now.Add(-workerConf.LeaseTimeout))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if reaped > 0 {
		logrus.Warnf("released %d outbox items with expired leases", reaped)
	}

	items, err := c.datasource.SelectPendingOutboxItems(ctx, workerConf.NotificationMaxRetry, workerConf.NotificationBatchSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	results := []OutboxResult{}
	for _, item := range items {
		claimed, err := c.datasource.ClaimOutboxItem(ctx, item.ID, now)
		if err != nil {
			span.RecordError(err)
			return results, err
		}
		if !claimed {
			continue
		}

		results = append(results, c.deliverOutboxItem(ctx, item))
	}
	return results, nil
}

func (c *Courtside) deliverOutboxItem(ctx context.Context, item *model.NotificationOutboxItem) OutboxResult {
	result := OutboxResult{ItemID: item.ID}

	notification, err := c.renderNotification(ctx, item)
	if err != nil {
		if markErr := c.datasource.MarkOutboxItemFailed(ctx, item.ID, err.Error()); markErr != nil {
			err = markErr
		}
		result.Status = model.OutboxFailed
		result.Error = err.Error()
		return result
	}

	created, err := c.datasource.CreateNotification(ctx, notification)
	if err != nil {
		if markErr := c.datasource.MarkOutboxItemFailed(ctx, item.ID, err.Error()); markErr != nil {
			err = markErr
		}
		result.Status = model.OutboxFailed
		result.Error = err.Error()
		return result
	}
	if !created {
		logrus.Infof("outbox item %s already delivered", item.ID)
	}

	if err := c.datasource.MarkOutboxItemSent(ctx, item.ID); err != nil {
		result.Status = model.OutboxFailed
		result.Error = err.Error()
		return result
	}
	result.Status = model.OutboxSent
	return result
}

// QueueNotification records an intent-to-notify for the delivery worker.
func (c *Courtside) QueueNotification(ctx context.Context, item *model.NotificationOutboxItem) (*model.NotificationOutboxItem, error) {
	return c.datasource.CreateOutboxItem(ctx, item)
}

// ListExhaustedOutboxItems exposes items whose retries are spent.
func (c *Courtside) ListExhaustedOutboxItems(ctx context.Context, limit int) ([]*model.NotificationOutboxItem, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return c.datasource.ListExhaustedOutboxItems(ctx, conf.Worker.NotificationMaxRetry, limit)
}
