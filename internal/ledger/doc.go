// Package ledger records completed migrations in PostgreSQL and lets destinations without their own history
// recover the last migrated reference.
package ledger
