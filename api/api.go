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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/courtsidehq/courtside"
	"github.com/courtsidehq/courtside/api/middleware"
	"github.com/courtsidehq/courtside/config"
)

type Api struct {
	engine *courtside.Courtside
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/operations", a.EnqueueOperation)
	router.GET("/operations/:id", a.GetOperation)
	router.GET("/operations/dead-letter", a.ListDeadLetterOperations)

	router.POST("/notifications", a.QueueNotification)
	router.GET("/notifications/exhausted", a.ListExhaustedOutboxItems)

	router.GET("/payments/:payment_intent_id", a.GetPaymentEvent)

	router.POST("/workers/operations", a.RunOperationsBatch)
	router.POST("/workers/notifications", a.RunNotificationOutbox)

	return a.router
}

func NewAPI(engine *courtside.Courtside) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware("courtside-api"))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{engine: engine, router: r}
}
