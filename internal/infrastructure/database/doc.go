// Package database provides SQLite connectivity for lightrelay's command
// history.
//
// This package manages:
//   - The connection, with WAL mode so API reads don't block the writer
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection pool limits suited to SQLite's single writer
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns must be
// NULLABLE or carry a DEFAULT.
package database
