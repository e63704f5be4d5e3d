package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/velora-ai/velora-backend/internal/app"
)

func main() {
	// Local development convenience; production injects real env vars.
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Error("Server stopped", "error", err)
	}
}
