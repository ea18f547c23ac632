package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/config"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the node config file")
	dial := flag.String("dial", "", "attach to a listening node instead of serving (ws:// URL or quic host:port)")
	flag.Parse()

	if err := run(*configPath, *dial); err != nil {
		fmt.Fprintln(os.Stderr, "syncnode:", err)
		os.Exit(1)
	}
}

func run(configPath, dial string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	node, cleanup, err := injector.InitializeNode(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dial != "" {
		go func() { _ = node.Simulate(ctx) }()
		return node.Dial(ctx, dial)
	}
	return node.Run(ctx)
}
