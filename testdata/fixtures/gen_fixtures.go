//go:build ignore

// gen_fixtures writes sample databases for trying dbgrid by hand.
// Run with: go run gen_fixtures.go
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/johan-st/dbgrid/internal/testutil"
	_ "modernc.org/sqlite"
)

func main() {
	if err := generate("sample.db", testutil.SampleSchema); err != nil {
		log.Fatalf("Failed to generate sample.db: %v", err)
	}
	if err := generateLarge(); err != nil {
		log.Fatalf("Failed to generate large.db: %v", err)
	}
	log.Println("All fixtures generated successfully")
}

func generate(name, schema string) error {
	os.Remove(name)
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return err
	}
	log.Printf("Generated %s", name)
	return nil
}

// large.db has enough rows and columns to exercise grid scrolling.
func generateLarge() error {
	os.Remove("large.db")
	db, err := sql.Open("sqlite", "large.db")
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE measurements (
			id INTEGER PRIMARY KEY,
			sensor TEXT NOT NULL,
			reading REAL,
			unit TEXT,
			location TEXT,
			recorded_at TEXT,
			notes TEXT
		)
	`); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO measurements (sensor, reading, unit, location, recorded_at, notes) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < 100000; i++ {
		var notes any
		if i%7 == 0 {
			notes = fmt.Sprintf("calibrated batch %d", i/7)
		}
		if _, err := stmt.Exec(
			fmt.Sprintf("sensor-%03d", i%250),
			float64(i%1000)/10,
			"°C",
			fmt.Sprintf("building %c", 'A'+rune(i%5)),
			fmt.Sprintf("2024-01-%02dT%02d:00:00Z", 1+i%28, i%24),
			notes,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Println("Generated large.db")
	return nil
}
