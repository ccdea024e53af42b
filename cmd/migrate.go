/*
Copyright 2024 Blnk Finance Authors.

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
	"errors"
	"fmt"

	"github.com/jerry-enebeli/offline/database"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

// migrateCommands manages the schema of the sqlite and postgres storage drivers.
func migrateCommands(app *offlineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "apply or roll back the SQL queue schema",
		Annotations: map[string]string{skipInstance: "true"},
	}

	cmd.AddCommand(migrateDirectionCommand(app, "up", migrate.Up, "Applied %d migrations!\n"))
	cmd.AddCommand(migrateDirectionCommand(app, "down", migrate.Down, "Rolled back %d migrations!\n"))

	return cmd
}

func migrateDirectionCommand(app *offlineInstance, use string, dir migrate.MigrationDirection, done string) *cobra.Command {
	return &cobra.Command{
		Use:         use,
		Annotations: map[string]string{skipInstance: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var dialect database.Dialect
			switch app.cnf.Storage.Driver {
			case "sqlite":
				dialect = database.SQLiteDialect
			case "postgres":
				dialect = database.PostgresDialect
			default:
				return errors.New("migrations only apply to the sqlite and postgres storage drivers")
			}

			db, err := database.Open(dialect, app.cnf.Storage.Dns)
			if err != nil {
				return fmt.Errorf("error connecting to database: %w", err)
			}
			defer db.Close()

			n, err := database.Migrate(db, dialect, dir)
			if err != nil {
				return fmt.Errorf("error migrating %s: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), done, n)
			return nil
		},
	}
}
