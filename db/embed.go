// Package db embeds the storefront PostgreSQL schema.
package db

import _ "embed"

// Schema creates every storefront table. All statements are idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
