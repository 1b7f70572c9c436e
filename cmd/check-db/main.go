// Package main is a diagnostic tool for testing database connectivity and
// inspecting live tenant data. It connects to the database, counts rows in the
// core tables, and prints a summary to stdout. The binary exits with a
// non-zero code on any failure so it can be embedded in health checks or CI/CD
// pipeline steps to gate deployments on a reachable, populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "comp"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=comp password=%s dbname=comp sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("Database connection OK")

	tables := []string{
		"organizations", "users", "organization_members", "api_keys",
		"risks", "vendors", "tasks", "comments", "integrations", "audit_logs",
	}
	for _, table := range tables {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			log.Fatalf("Failed to count %s: %v", table, err)
		}
		fmt.Printf("%-22s %d rows\n", table, count)
	}
}
