// Package db embeds the PostgreSQL schema migrations applied by pg.Migrate
// when the service runs with STORE_DRIVER=postgres.
package db
