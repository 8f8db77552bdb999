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

	"github.com/courtsidehq/courtside/model"
)

// OperationHandler executes one claimed operation. Handlers must be safe
// to re-run: at-least-once delivery means a crash after the work but
// before the success write replays the operation.
type OperationHandler func(ctx context.Context, op *model.Operation) error

func (c *Courtside) registerHandlers() {
	c.handlers = map[string]OperationHandler{
		string(model.OpProcessProviderEvent):     c.processProviderEvent,
		string(model.OpFulfillPayment):           c.fulfillPayment,
		string(model.OpUpsertLedger):             c.upsertLedger,
		string(model.OpUpsertLedgerFree):         c.upsertLedgerFree,
		string(model.OpProcessRefundSingle):      c.processRefundSingle,
		string(model.OpMarkDispute):              c.markDispute,
		string(model.OpSendEmailReceipt):         c.sendEmailReceipt,
		string(model.OpSendNotificationPurchase): c.sendNotificationPurchase,
		string(model.OpApplyPromoRedemption):     c.applyPromoRedemption,
		string(model.OpClaimGuestPurchase):       c.claimGuestPurchase,
		string(model.OpSendEmailOutbox):          c.sendEmailOutbox,
	}
}

func (c *Courtside) handlerFor(operationType model.OperationType) (OperationHandler, bool) {
	handler, ok := c.handlers[string(operationType)]
	return handler, ok
}
