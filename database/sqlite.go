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

package database

import (
	"database/sql"
	"embed"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Dialect is a database/sql driver name, also used as the sql-migrate dialect.
type Dialect string

const (
	SQLiteDialect   Dialect = "sqlite3"
	PostgresDialect Dialect = "postgres"
)

// Migrations returns the embedded schema migrations. They are written to run unchanged
// on SQLite and Postgres.
func Migrations() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: SQLFiles,
		Root:       "sql",
	}
}

// Migrate applies or rolls back the schema and returns the number of migrations run.
func Migrate(db *sql.DB, dialect Dialect, dir migrate.MigrationDirection) (int, error) {
	return migrate.Exec(db, string(dialect), Migrations(), dir)
}

// OpenSQLite opens the database file at path. SQLite allows a single writer, so the pool
// is limited to one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(string(SQLiteDialect), path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return ping(db)
}

// ConnectPostgres opens a pooled Postgres connection for dsn.
func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(PostgresDialect), dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return ping(db)
}

// Open connects to the SQL database for dialect.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect == PostgresDialect {
		return ConnectPostgres(dsn)
	}
	return OpenSQLite(dsn)
}

func ping(db *sql.DB) (*sql.DB, error) {
	if err := db.Ping(); err != nil {
		logrus.Errorf("Database connection error ❌: %v", err)
		_ = db.Close()
		return nil, err
	}
	logrus.Debug("Database connection established ✅")
	return db, nil
}
