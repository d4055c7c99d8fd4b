package main

import (
	"flag"
	"log"
	"os"

	"AriaPull/internal/di"
	"AriaPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s detection=%s sinks=%v", cfg.Environment, cfg.Detection.Mode, cfg.Output.Sinks)
	if *checkOnly {
		log.Printf("config %s ok", *configPath)
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("kafka: brokers=%v pairs=%s events=%s", cfg.Kafka.Brokers, cfg.Kafka.PairsTopic, cfg.Kafka.EventsTopic)

	// blocks until SIGINT or SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
