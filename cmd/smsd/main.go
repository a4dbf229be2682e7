package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/smsd/internal/config"
	"github.com/matheus3301/smsd/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "config.toml", "config file path")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(cfg),
	)

	app.Run()
}
