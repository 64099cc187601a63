package main

import (
	"log"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env with SEISTEP_* overrides, picked up by viper.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}
