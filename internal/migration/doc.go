// Package migration loads migration files and assembles squash workflows, with their origins,
// destinations, transformations, and optional ledger, from the declarations they contain.
package migration
