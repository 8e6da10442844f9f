// Package db embeds the schema applied on startup.
package db

import _ "embed"

// Schema contains the DDL for the catalog, order, payment, and auth tables.
// Every statement is idempotent so the schema can be reapplied on each boot.
//
//go:embed migrations/001_schema.sql
var Schema string
