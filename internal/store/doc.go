// Package store provides the SQLite storage backend behind the "sqlite"
// module.
//
// It is the statically linked implementation of modules.Backend that the
// module pipeline activates when the sqlite module installs: admin records
// with bcrypt password hashes, persisted in a database under the module's
// own install directory (modules/sqlite/data/qmserver.db).
//
// The driver is modernc.org/sqlite (pure Go, no cgo). The schema is created
// by InitDatabase, which the pipeline invokes as the module's initialization
// hook.
package store
