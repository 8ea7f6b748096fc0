package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/signalnine/flakebench/cmd"
)

type exitCoder interface {
	ExitCode() int
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := cmd.NewRootCmd().Execute(); err != nil {
		var ec exitCoder
		if errors.As(err, &ec) && ec.ExitCode() != 0 {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}
