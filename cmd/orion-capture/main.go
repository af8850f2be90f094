// Command orion-capture drives a capture session against the mock or V4L2
// source, saves stills and optionally publishes result summaries to MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version information
const version = "v0.2.0"

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
