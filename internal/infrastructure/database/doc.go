// Package database provides the SQLite connection used by the sqlite store.
//
// It manages:
//   - the connection, with WAL mode and a busy timeout
//   - additive schema bootstrap from the embedded migrations package
//   - a single-writer pool and health checks
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	steps, err := migrations.Load(migrations.SQLiteDir)
//	if err != nil {
//	    return err
//	}
//	if err := db.Migrate(ctx, steps); err != nil {
//	    return err
//	}
package database
