package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"go-sales-etl/internal/api"
	"go-sales-etl/internal/api/handler"
	"go-sales-etl/internal/config"
	"go-sales-etl/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	runStore, err := store.NewRunStore(cfg.RunDB)
	if err != nil {
		log.Fatalf("open run store: %v", err)
	}
	defer runStore.Close()

	sink, err := store.NewSQLSink(cfg.Sink.Driver, cfg.Sink.DSN, cfg.Sink.Table)
	if err != nil {
		log.Fatalf("open sink: %v", err)
	}
	defer sink.Close()

	if err := sink.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("ensure sink schema: %v", err)
	}

	h := handler.New(cfg.RunConfig(), runStore, sink)
	router := api.NewRouter(h)

	addr := ":" + cfg.Server.Port
	log.Printf("🚀 sales ETL API listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, router))
}
