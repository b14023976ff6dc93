// Package sql holds the PostgreSQL schema applied at startup.
package sql

import "embed"

//go:embed schema/*.sql
var Content embed.FS
