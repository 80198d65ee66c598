package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/civium/ragline"
	"github.com/civium/ragline/core/pipeline"
	"github.com/civium/ragline/model"
)

func main() {
	ctx := context.Background()

	// Load the default embedding model (all-MiniLM-L6-v2, 384 dims).
	embedder, err := pipeline.NewDefaultEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	r, err := ragline.New(embedder, model.DefaultPipelineConfig())
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer r.Close()

	docs := []*model.Document{
		{
			ID:        "marriage-licences",
			Title:     "Marriage licences",
			URL:       "https://city.example/marriage-licences",
			Section:   "licences",
			Language:  "en",
			FetchedAt: time.Now(),
			Text: `A marriage licence costs $145 and can be obtained at any client
service centre. Both parties must appear in person with two pieces of
government-issued identification. The licence is valid for 90 days from
the date of issue anywhere in the province.`,
		},
		{
			ID:        "garbage-collection",
			Title:     "Garbage and recycling collection",
			URL:       "https://city.example/garbage-collection",
			Section:   "waste",
			Language:  "en",
			FetchedAt: time.Now(),
			Text: `Garbage is collected every two weeks. Place your bins at the curb
by 7 am on your collection day. Recycling and green bins are collected
weekly. Check the collection calendar for your address to find your day.`,
		},
	}

	fmt.Println("Ingesting documents...")
	numChunks, err := r.IngestAll(ctx, docs)
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	fmt.Printf("Indexed %d chunks\n", numChunks)

	query := "How much does a marriage licence cost?"
	fmt.Printf("\nQuerying: %s\n", query)

	cfg := model.DefaultQueryConfig()
	cfg.MinScore = 0.3

	results, err := r.Search(ctx, query, cfg)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nFound %d results:\n", len(results))
	for i, result := range results {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Score: %.4f\n", result.Score)
		fmt.Printf("Source: %s (%s)\n", result.Meta.Title, result.Meta.URL)
		fmt.Printf("Text: %s\n", result.Text)
	}

	// Assemble a generation-ready prompt with source attribution.
	answerCtx, err := r.Assemble(ctx, query, cfg)
	if err != nil {
		log.Fatalf("Failed to assemble context: %v", err)
	}
	fmt.Printf("\nAssembled prompt (%d chars, %d sources)\n", len(answerCtx.Prompt), len(answerCtx.Sources))

	// Persist the index for the next run.
	if err := r.Save("./snapshot"); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}
	fmt.Println("\nSaved index snapshot to ./snapshot")
}
