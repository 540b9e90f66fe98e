// Package database provides SQLite connectivity for SEP2 Core.
//
// It owns the connection lifecycle, the schema migration runner and the
// timestamp encoding shared by every repository. Repositories in the
// domain packages take the embedded *sql.DB and issue parameterised
// queries only.
//
// # Timestamps
//
// All time columns hold TimeLayout strings in UTC. Use FormatTime when
// writing and ParseTime when reading so that equality lookups on
// changed_time and deleted_time behave.
//
// # Migrations
//
// Migrations are embedded by the migrations package and registered in
// MigrationsFS. Each version has an .up.sql and usually a .down.sql:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
