// Command worker performs one bounded webhook delivery pass and, optionally,
// prunes aged idempotency records or seeds development fixtures. It is meant
// to be invoked periodically by an external scheduler (cron, systemd timer);
// it never loops on its own.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/ARamos00/nursery-tracker/internal/database"
	"github.com/ARamos00/nursery-tracker/internal/di"
)

func main() {
	cleanup := flag.Bool("cleanup", false, "prune aged idempotency records instead of delivering webhooks")
	batch := flag.Int("batch", 500, "max idempotency records to prune in one run")
	seed := flag.Bool("seed", false, "insert development fixtures and exit")
	seedReceiver := flag.String("seed-receiver", "", "webhook receiver URL for the seeded endpoint")
	flag.Parse()

	w, err := di.InitializeWorker()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	if *seed {
		report, err := database.SeedSync(w.DB, *seedReceiver)
		if err != nil {
			log.Fatal(err)
		}
		w.Logger.Info("seed finished",
			"noop", report.Noop, "plants", report.CreatedPlants, "endpoints", report.CreatedEndpoints)
		return
	}

	if *cleanup {
		cutoff := time.Now().UTC().Add(-w.Config.IdempotencyRetention)
		deleted, err := w.Idempotency.CleanupBefore(ctx, cutoff, *batch)
		if err != nil {
			log.Fatal(err)
		}
		w.Logger.Info("idempotency cleanup finished", "deleted", deleted, "cutoff", cutoff)
		return
	}

	if !w.Config.WebhooksDeliveryEnabled {
		w.Logger.Warn("webhook delivery disabled, exiting")
		return
	}
	processed, err := w.Deliverer.RunOnce(ctx)
	if err != nil {
		log.Fatal(err)
	}
	w.Logger.Info("delivery pass finished", "processed", processed)
}
