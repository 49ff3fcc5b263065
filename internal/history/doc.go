// Package history archives finished batch runs in SQLite.
//
// The Store manages the database connection, schema initialization, and a
// file lock so only one chute process writes history at a time. The archive
// is written after a run settles; the scheduler itself keeps no state
// between sessions. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package history
