package db

import "embed"

// EmbedMigrations holds the SQL migration files compiled into the binary.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
