package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Secrets (GMAIL_ACCESS_TOKEN, OPENAI_API_KEY, TELEGRAM_BOT_TOKEN, ...)
	// may live in a .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
