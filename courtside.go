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
	"github.com/courtsidehq/courtside/cache"
	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/database"
)

// Courtside represents the main struct for the Courtside worker engine.
type Courtside struct {
	datasource  database.IDataSource
	cache       cache.Cache
	provider    *ProviderClient
	mailer      *MailerClient
	fulfillment []FulfillmentStrategy
	handlers    map[string]OperationHandler
}

// NewCourtside initializes a new instance of Courtside with the provided
// database datasource. It fetches the configuration and wires the cache,
// payment provider client, mailer and the operation handler registry.
func NewCourtside(db database.IDataSource) (*Courtside, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	newCourtside := &Courtside{
		datasource: db,
		cache:      newCache,
		provider:   NewProviderClient(configuration),
		mailer:     NewMailerClient(configuration),
	}
	newCourtside.fulfillment = defaultFulfillmentChain()
	newCourtside.registerHandlers()
	return newCourtside, nil
}
