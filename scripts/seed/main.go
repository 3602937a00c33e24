package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/learnjournal/journal/internal/entries"
)

func main() {
	path := getenv("JOURNAL_DATA_FILE", "backend/reflections.json")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	repo := entries.NewFileRepository(afero.NewOsFs(), path, logger)
	service := entries.NewService(repo, entries.NewValidator())

	existing, err := service.List(ctx)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	if len(existing) > 0 && os.Getenv("SEED_FORCE") != "1" {
		fmt.Printf("%s already holds %d entries, set SEED_FORCE=1 to add samples anyway\n", path, len(existing))
		return
	}

	fmt.Println("→ Seeding journal entries...")
	for _, e := range samples() {
		created, total, err := service.Create(ctx, e)
		if err != nil {
			log.Fatalf("seed %q: %v", e.TaskName, err)
		}
		fmt.Printf("  %s week %d %s (%d total)\n", created.ID, created.WeekOfJournal, created.TaskName, total)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func samples() []entries.Entry {
	return []entries.Entry{
		{
			WeekOfJournal:   1,
			JournalName:     "Getting started",
			JournalDate:     "2025-01-13",
			TaskName:        "Semantic page layout",
			TaskDescription: "Rebuilt the home page with header, nav, main and footer landmarks and checked it with a screen reader",
			Technologies:    entries.Technologies{"HTML", "CSS"},
		},
		{
			WeekOfJournal:   2,
			JournalName:     "Interactivity",
			JournalDate:     "2025-01-20",
			TaskName:        "Journal form",
			TaskDescription: "Added the entry form with client side validation so short descriptions are caught before they are sent",
			Technologies:    entries.Technologies{"JavaScript", "DOM"},
		},
		{
			WeekOfJournal:   3,
			JournalName:     "Offline first",
			JournalDate:     "2025-01-27",
			TaskName:        "Service worker",
			TaskDescription: "Cached the app shell and used a network first strategy for the entry API so reads keep working offline",
			Technologies:    entries.Technologies{"PWA", "Service Worker"},
		},
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
