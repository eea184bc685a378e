// Command scribe is the entry point for the voice-dictation daemon and its
// control CLI. It runs the daemon (scribe / scribe daemon), sends one-shot
// control commands over the local socket (start/stop/cancel/toggle/status),
// and manages cached Whisper models (model ...), per spec.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside development; only report read
	// failures, mirroring the teacher's cmd/agent/main.go godotenv.Load.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "scribe: note: .env not loaded: %v\n", err)
	}

	os.Exit(Execute())
}
