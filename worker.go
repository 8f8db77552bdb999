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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/internal/apierror"
	"github.com/courtsidehq/courtside/internal/notification"
	"github.com/courtsidehq/courtside/model"
)

var tracer = otel.Tracer("Operations worker")

// BatchResult reports the outcome of one operation in a worker batch.
type BatchResult struct {
	OperationID   int64                 `json:"operation_id"`
	OperationType model.OperationType   `json:"operation_type"`
	Status        model.OperationStatus `json:"status"`
	Error         string                `json:"error,omitempty"`
}

// RunOperationsBatch executes one pass of the operations worker: release
// expired leases, select a batch of claimable operations oldest first, and
// run each one the worker wins the claim for. Operations another worker
// claims in the meantime are skipped, not errors.
func (c *Courtside) RunOperationsBatch(ctx context.Context) ([]BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Running operations batch")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	workerConf := conf.Worker

	now := time.Now()
	reaped, err := c.datasource.ReapStaleOperations(ctx, now.Add(-workerConf.LeaseTimeout))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if reaped > 0 {
		logrus.Warnf("released %d operations with expired leases", reaped)
	}

	candidates, err := c.datasource.SelectClaimableOperations(ctx, now, workerConf.BatchSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	results := []BatchResult{}
	for _, op := range candidates {
		claimed, err := c.datasource.ClaimOperation(ctx, op.ID, now)
		if err != nil {
			span.RecordError(err)
			return results, err
		}
		if !claimed {
			// Another worker won this row between select and claim.
			continue
		}
		op.Attempts++

		results = append(results, c.executeOperation(ctx, op, workerConf))
	}
	return results, nil
}

func (c *Courtside) executeOperation(ctx context.Context, op *model.Operation, workerConf config.WorkerConfig) BatchResult {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("Executing %s", op.OperationType),
		trace.WithAttributes(
			attribute.Int64("operation.id", op.ID),
			attribute.Int("operation.attempts", op.Attempts),
		))
	defer span.End()

	result := BatchResult{OperationID: op.ID, OperationType: op.OperationType}

	handler, ok := c.handlerFor(op.OperationType)
	if !ok {
		// No handler can ever appear for this row, so retrying is pointless.
		err := apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("unknown operation type %s", op.OperationType), nil)
		return c.recordOutcome(ctx, op, workerConf, result, err)
	}

	err := handler(ctx, op)
	if err != nil {
		span.RecordError(err)
	}
	return c.recordOutcome(ctx, op, workerConf, result, err)
}

// recordOutcome writes the operation's terminal state for this attempt.
// Deterministic failures skip the remaining retry budget; transient ones
// reschedule with the flat delay. The delay is deliberately flat rather
// than exponential: payment providers settle in minutes, and a fixed
// five-minute cadence keeps the dead-letter horizon predictable.
func (c *Courtside) recordOutcome(ctx context.Context, op *model.Operation, workerConf config.WorkerConfig, result BatchResult, opErr error) BatchResult {
	if opErr == nil {
		if err := c.datasource.RecordOperationSuccess(ctx, op.ID); err != nil {
			result.Status = model.OperationFailed
			result.Error = err.Error()
			return result
		}
		result.Status = model.OperationSucceeded
		return result
	}

	result.Error = opErr.Error()

	if apierror.IsPermanent(opErr) || op.Attempts >= workerConf.MaxAttempts {
		if err := c.datasource.DeadLetterOperation(ctx, op.ID, opErr.Error()); err != nil {
			result.Status = model.OperationFailed
			result.Error = err.Error()
			return result
		}
		notification.NotifyError(fmt.Errorf("operation %d (%s) dead-lettered: %w", op.ID, op.OperationType, opErr))
		result.Status = model.OperationDeadLetter
		return result
	}

	nextRetry := time.Now().Add(workerConf.RetryDelay)
	if err := c.datasource.RecordOperationFailure(ctx, op.ID, opErr.Error(), nextRetry); err != nil {
		result.Error = err.Error()
	}
	result.Status = model.OperationFailed
	return result
}

// EnqueueOperation records deferred work with a stable dedupe key.
// Re-enqueueing an existing key returns the existing row untouched.
func (c *Courtside) EnqueueOperation(ctx context.Context, op *model.Operation) (*model.Operation, error) {
	if op.DedupeKey == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "operation dedupe key is required", nil)
	}
	if _, ok := c.handlerFor(op.OperationType); !ok {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown operation type %s", op.OperationType), nil)
	}
	return c.datasource.EnqueueOperation(ctx, op)
}

// ListDeadLetterOperations exposes the dead-letter set for triage.
func (c *Courtside) ListDeadLetterOperations(ctx context.Context, limit, offset int) ([]*model.Operation, error) {
	return c.datasource.ListDeadLetterOperations(ctx, limit, offset)
}

// GetOperation retrieves a single operation by id.
func (c *Courtside) GetOperation(ctx context.Context, id int64) (*model.Operation, error) {
	return c.datasource.GetOperationByID(ctx, id)
}
