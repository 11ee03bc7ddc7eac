package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/repository"
)

// Usage: migrate [up|down|status|version]
func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := repository.Migrate(context.Background(), cfg.Database.DSN(), command); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrate %s: done", command)
}
