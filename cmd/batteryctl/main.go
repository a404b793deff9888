package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Local overrides (APP_ENV, credentials) live in .env during development.
	_ = godotenv.Load()

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
