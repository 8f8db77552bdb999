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

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/config"
)

// runWorkerLoop drives the operations queue and the notification outbox on
// a fixed interval until the context is cancelled. Both passes are safe to
// run alongside other worker processes; the claim updates decide ownership.
func runWorkerLoop(ctx context.Context, b *courtsideInstance, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results, err := b.engine.RunOperationsBatch(ctx)
		if err != nil {
			logrus.Errorf("operations batch failed: %v", err)
		} else if len(results) > 0 {
			logrus.Infof("processed %d operations", len(results))
		}

		delivered, err := b.engine.RunNotificationOutbox(ctx)
		if err != nil {
			logrus.Errorf("notification outbox pass failed: %v", err)
		} else if len(delivered) > 0 {
			logrus.Infof("delivered %d notifications", len(delivered))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// workerCommands defines the "workers" command that runs the resident
// worker process.
func workerCommands(b *courtsideInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start courtside workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeTracing(ctx)
			if err != nil {
				log.Printf("Tracing disabled: %v", err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}

			log.Printf("Starting worker loop, interval %s", conf.Worker.Interval)
			runWorkerLoop(ctx, b, conf.Worker.Interval)
			log.Println("Worker loop stopped")
		},
	}

	return cmd
}
