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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunOperationsBatch triggers one synchronous worker pass: the operations
// batch first, then a notification outbox drain, so a single scheduler
// call moves both queues. Deployments without a resident worker process
// call this from a scheduler.
func (a Api) RunOperationsBatch(c *gin.Context) {
	results, err := a.engine.RunOperationsBatch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	delivered, err := a.engine.RunNotificationOutbox(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": len(results), "results": results, "delivered": len(delivered), "notifications": delivered})
}

func (a Api) RunNotificationOutbox(c *gin.Context) {
	results, err := a.engine.RunNotificationOutbox(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"delivered": len(results), "results": results})
}
