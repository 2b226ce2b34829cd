// Package state keeps a history of builds in a SQLite database so past
// results can be listed after the process exits.
package state
