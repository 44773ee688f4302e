// Package postgres archives evicted tasks to PostgreSQL through database/sql
// and the pgx driver, and owns the embedded goose migrations for that schema.
// The archive is history only; nothing in it is loaded back into the queue.
package postgres
