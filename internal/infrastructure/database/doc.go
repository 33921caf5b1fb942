// Package database opens the SQLite file behind the template catalog,
// device inventory and audit trail, and migrates its schema.
//
// Migration files are named YYYYMMDD_HHMMSS_name.up.sql with an optional
// matching .down.sql. Package migrations registers the embedded set via
// UseMigrations; tests register an fstest.MapFS instead.
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
