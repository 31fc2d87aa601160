package pgstore

import "embed"

// MigrationsDir is the directory of the goose migrations inside Migrations.
const MigrationsDir = "migrations"

// Migrations holds the schema of the store, ready for pg.MigrateFS.
//
//go:embed migrations/*.sql
var Migrations embed.FS
