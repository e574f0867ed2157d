package main

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/avstrong/tours/internal/app"
	"github.com/avstrong/tours/internal/logger"
)

func main() {
	l := logger.New(log.Default())

	var exitCode int

	if err := app.Run(l, os.Args[1:]); err != nil && !errors.Is(err, pflag.ErrHelp) {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	os.Exit(exitCode)
}
