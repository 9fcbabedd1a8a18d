package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/cardtable/internal/ipc"
)

// runWatchCommand prints the event feed of a running server.
func runWatchCommand() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addr := fs.String("addr", "", "Server address (default: the configured listen address)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *addr == "" {
		*addr = loadConfig().Server.Address
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ipc.NewClient("ws://"+*addr+"/ws", ipc.Options{})
	client.On(ipc.AnyEvent, func(e ipc.Event) {
		fmt.Printf("%s  %-18s %s\n", time.Now().Format("15:04:05.000"), e.Type, e.Data)
	})

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", client.URL())
	if err := client.Run(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
