package database

import (
	"database/sql"
	"fmt"
	"sync"

	"barlive/Database/schema"
	"barlive/configs"

	_ "github.com/lib/pq"
)

var dbInstance *sql.DB
var dbInstanceError error
var dbOnce sync.Once

func GetPostgresDB(config *configs.Config) (*sql.DB, error) {
	dbOnce.Do(func() {
		connectionStr := config.GetDatabaseURL()
		db, err := sql.Open("postgres", connectionStr)
		if err != nil {
			dbInstanceError = fmt.Errorf("failed to connect to PostgreSQL: %v", err)
			return
		}

		err = db.Ping()
		if err != nil {
			dbInstanceError = fmt.Errorf("failed to ping PostgreSQL: %v", err)
			return
		}

		dbInstance = db

		if err := schema.CreateAllLivestreamTables(db); err != nil {
			dbInstanceError = fmt.Errorf("failed to create livestream tables: %v", err)
			dbInstance = nil
			return
		}
	})
	return dbInstance, dbInstanceError
}
