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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside"
	"github.com/courtsidehq/courtside/config"
	"github.com/courtsidehq/courtside/database"
	"github.com/courtsidehq/courtside/internal/notification"
)

// Courtside represents the CLI application, encapsulating the root Cobra command.
type Courtside struct {
	cmd *cobra.Command
}

// courtsideInstance holds the engine instance and its configuration, shared
// by all subcommands after the pre-run hook initializes them.
type courtsideInstance struct {
	engine *courtside.Courtside
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the engine before any
// subcommand runs.
func preRun(app *courtsideInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newEngine, err := setupCourtside(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = newEngine
		app.cnf = cnf

		return nil
	}
}

func setupCourtside(cfg *config.Configuration) (*courtside.Courtside, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newEngine, err := courtside.NewCourtside(db)
	if err != nil {
		return nil, fmt.Errorf("error creating courtside engine: %v", err)
	}
	return newEngine, nil
}

// NewCLI creates the command-line interface for the Courtside operations
// engine, with subcommands for the API server, the worker loop and schema
// migrations.
func NewCLI() *Courtside {
	var configFile string
	b := &courtsideInstance{}

	var rootCmd = &cobra.Command{
		Use:   "courtside",
		Short: "Courtside operations engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./courtside.json", "Configuration file for the operations engine")
	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Courtside{cmd: rootCmd}
}

func (w Courtside) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()
	cli := NewCLI()
	cli.executeCLI()
}
