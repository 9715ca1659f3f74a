// Package database provides the SQLite connection and embedded schema
// migrations backing FieldPoint's durable state, currently the override
// pattern store.
package database
