package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/civium/ragline"
	"github.com/civium/ragline/core/pipeline"
	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/model"
)

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container with pgvector
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	embedder, err := pipeline.NewDefaultEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	r, err := ragline.NewPostgres(dbConfig, embedder, model.DefaultPipelineConfig())
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer r.Close()

	docs := []*model.Document{
		{
			ID:        "residential-parking-permits",
			Title:     "Residential parking permits",
			URL:       "https://city.example/parking-permits",
			Section:   "parking",
			Language:  "en",
			FetchedAt: time.Now(),
			Text: `Residential parking permits allow on-street parking in permit
zones. An annual permit costs $68.50 and is tied to your licence plate.
Apply online or at a client service centre with proof of residency and
your vehicle registration. Permits must be renewed every year by
March 31.`,
		},
		{
			ID:        "pool-schedules",
			Title:     "Public pool schedules",
			URL:       "https://city.example/pool-schedules",
			Section:   "recreation",
			Language:  "en",
			FetchedAt: time.Now(),
			Text: `Public swim sessions run daily at all city pools. Lane swimming
is available weekday mornings from 6 am to 8 am. Admission is free for
children under 6. Check the schedule of your nearest pool before
visiting, as hours change on statutory holidays.`,
		},
	}

	fmt.Println("Rebuilding index from corpus...")
	numChunks, err := r.Rebuild(ctx, docs)
	if err != nil {
		log.Fatalf("Failed to rebuild index: %v", err)
	}
	fmt.Printf("Indexed %d chunks\n", numChunks)

	query := "How much is a residential parking permit?"
	fmt.Printf("\nQuerying: %s\n", query)

	cfg := model.DefaultQueryConfig()
	cfg.MinScore = 0.3
	cfg.Filters = map[string]string{model.FilterFieldSection: "parking"}

	answer, err := r.Ask(ctx, query, cfg)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}

	fmt.Printf("\nConfidence: %.4f (%d chunks)\n", answer.Confidence, answer.ChunksUsed)
	for _, source := range answer.Sources {
		fmt.Printf("Source: %s (%s) score %.4f\n", source.Title, source.URL, source.Score)
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	fmt.Printf("\nCorpus: %d documents, %d chunks, model %s\n", stats.Documents, stats.Chunks, stats.EmbeddingModel)
}
