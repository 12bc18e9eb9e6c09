package main

import (
	"github.com/mr1hm/abandoned-explorer/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Fatalf("%v", err)
	}
}
