package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iort-labs/qtrust/cli/qtrust/cmd"
	"github.com/iort-labs/qtrust/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.New(logger.New).Execute(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "qtrust: %v\n", err)
		os.Exit(1)
	}
}
