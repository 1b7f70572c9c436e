// Package main is a development utility for generating a test API key with
// its salted hash pre-computed. It prints the raw key, hash, salt, and a
// ready-to-run SQL INSERT statement so developers can quickly seed a usable
// API key in a local database without running the full server flow. Do not use
// generated keys in production — create keys through the API so they get
// proper expiry settings and an audit trail.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/compai/comp-api/internal/auth"
)

func main() {
	orgID := "00000000-0000-0000-0000-000000000001"
	if len(os.Args) > 1 {
		orgID = os.Args[1]
	}

	plaintext, hash, salt, err := auth.GenerateKey("comp_")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Generated development API key:")
	fmt.Printf("  Key:  %s\n", plaintext)
	fmt.Printf("  Hash: %s\n", hash)
	fmt.Printf("  Salt: %s\n", salt)
	fmt.Println()
	fmt.Println("Seed it with:")
	fmt.Printf("  INSERT INTO api_keys (id, organization_id, name, key_hash, salt, is_active, created_at)\n")
	fmt.Printf("  VALUES (gen_random_uuid(), '%s', 'dev key', '%s', '%s', TRUE, NOW());\n", orgID, hash, salt)
}
