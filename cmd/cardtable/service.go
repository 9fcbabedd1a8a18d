package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kardianos/service"

	"github.com/ramonehamilton/cardtable/internal/app"
	"github.com/ramonehamilton/cardtable/internal/config"
)

// serverProgram runs the card table under the service manager.
type serverProgram struct {
	cfg    *config.Config
	app    *app.App
	cancel context.CancelFunc
}

// Start implements service.Interface. It must not block.
func (p *serverProgram) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	a, err := startApp(ctx, p.cfg)
	if err != nil {
		cancel()
		return err
	}
	p.app = a
	p.cancel = cancel
	log.Printf("Card table service listening on %s", a.Address())
	return nil
}

// Stop implements service.Interface.
func (p *serverProgram) Stop(s service.Service) error {
	log.Println("Stopping card table service...")
	if p.app == nil {
		return nil
	}
	defer p.cancel()
	return stopApp(p.app, p.cfg)
}

func getServiceConfig() *service.Config {
	return &service.Config{
		Name:        "CardTable",
		DisplayName: "Card Table",
		Description: "Serves the card table API and keeps deck and tabletop state saved",
		Arguments:   []string{"service", "run"},
	}
}

func runServiceCommand() {
	if len(os.Args) < 3 {
		printServiceUsage()
		os.Exit(1)
	}

	action := os.Args[2]

	prg := &serverProgram{}
	svcConfig := getServiceConfig()
	s, err := service.New(prg, svcConfig)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch action {
	case "run":
		// Invoked by the service manager.
		prg.cfg = loadConfig()
		if err := s.Run(); err != nil {
			log.Fatalf("Service failed: %v", err)
		}

	case "install":
		if err := s.Install(); err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		fmt.Println("✓ Service installed successfully")
		fmt.Println("\nNext steps:")
		fmt.Println("  1. Start the service: cardtable service start")
		fmt.Println("  2. Verify it's running: cardtable service status")
		fmt.Println("  3. View logs:")
		switch service.Platform() {
		case "darwin-launchd":
			fmt.Println("     tail -f /usr/local/var/log/CardTable.err.log")
		case "windows-service":
			fmt.Println("     Check Event Viewer")
		default:
			fmt.Println("     journalctl -u CardTable -f")
		}

	case "uninstall":
		if err := s.Uninstall(); err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		fmt.Println("✓ Service uninstalled successfully")

	case "start":
		if err := s.Start(); err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		fmt.Println("✓ Service started successfully")

	case "stop":
		if err := s.Stop(); err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		fmt.Println("✓ Service stopped successfully")

	case "restart":
		if err := s.Restart(); err != nil {
			log.Fatalf("Failed to restart service: %v", err)
		}
		fmt.Println("✓ Service restarted successfully")

	case "status":
		status, err := s.Status()
		if err != nil {
			log.Fatalf("Failed to get service status: %v", err)
		}

		fmt.Println("Service Status:")
		switch status {
		case service.StatusRunning:
			fmt.Println("  Status: ✓ Running")
		case service.StatusStopped:
			fmt.Println("  Status: ● Stopped")
		default:
			fmt.Println("  Status: ? Unknown")
		}

		fmt.Println("\nService Details:")
		fmt.Printf("  Name: %s\n", svcConfig.Name)
		fmt.Printf("  Display Name: %s\n", svcConfig.DisplayName)
		fmt.Printf("  Description: %s\n", svcConfig.Description)

	default:
		fmt.Printf("Unknown service command: %s\n", action)
		printServiceUsage()
		os.Exit(1)
	}
}

func printServiceUsage() {
	fmt.Println("Usage: cardtable service [install|uninstall|start|stop|restart|status]")
	fmt.Println("\nAvailable commands:")
	fmt.Println("  install    - Install the card table as a system service")
	fmt.Println("  uninstall  - Uninstall the service")
	fmt.Println("  start      - Start the service")
	fmt.Println("  stop       - Stop the service")
	fmt.Println("  restart    - Restart the service")
	fmt.Println("  status     - Show service status")
}
