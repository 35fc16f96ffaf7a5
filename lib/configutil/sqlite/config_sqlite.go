package configsqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Struct struct {
	// path to a local sqlite file, created if missing
	File string `json:"file"`
	// remote libsql url (libsql://... or https://...), takes
	// precedence over File when set
	Url string `json:"url"`
}

// opens the configured database and applies the given schema. schema
// application tolerates tables that already exist so it is safe to run
// on every startup.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch {
	case config.Url != "":
		db, err = sql.Open("libsql", config.Url)
	case config.File != "":
		db, err = sql.Open("sqlite", config.File)
	default:
		return nil, fmt.Errorf("neither a database file nor a url was specified")
	}
	if err != nil {
		return nil, err
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if config.Url == "" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			return nil, err
		}
	}

	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, err
	}

	return db, nil
}
