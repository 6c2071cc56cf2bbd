// Package store persists finalized region aggregates to PostgreSQL.
//
// The sink is optional: it is only opened when a Postgres URL is configured.
// Every pipeline run upserts one row per region into msa_aggregates, keyed
// by region id, inside a single transaction.
package store
