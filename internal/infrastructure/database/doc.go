// Package database provides the SQLite connection and schema migration
// machinery backing Fieldline's configuration snapshot store.
//
// The database is an operational convenience, not a source of truth: it
// holds the last applied control group configuration so a restarted
// instance can resubscribe before the broker re-delivers it.
package database
