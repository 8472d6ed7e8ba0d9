package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"sharecrop/internal/catalog"
	"sharecrop/internal/config"
	"sharecrop/internal/database"
	"sharecrop/internal/listing"
	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

func main() {
	write := flag.Bool("write", false, "store valid catalog listings as stored fields")
	url := flag.String("url", "", "validate a remote catalog instead of the embedded one")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var provider catalog.Provider = catalog.NewEmbeddedProvider(false, 0)
	if *url != "" {
		provider = catalog.NewHTTPProvider(*url, &http.Client{Timeout: 10 * time.Second})
	}
	resp, err := provider.GetListings(ctx)
	if err != nil {
		log.Fatal("CATALOG", fmt.Sprintf("Failed to load catalog: %v", err))
	}

	var valid []models.Listing
	problems := 0
	for i, raw := range resp.Data.Listings {
		l, err := listing.Normalize(raw, models.SourceStored)
		if err != nil {
			problems++
			log.Warn("CATALOG", fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if !l.Renderable() {
			log.Warn("CATALOG", fmt.Sprintf("%s has no usable coordinates and will not be shown on the map", l.ID))
		}
		valid = append(valid, l)
	}
	log.Info("CATALOG", fmt.Sprintf("%d listings valid, %d rejected", len(valid), problems))

	if !*write {
		if problems > 0 {
			os.Exit(1)
		}
		return
	}

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	kv := store.NewSQLKV(bunDB)
	if err := kv.CreateTable(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to create kv table: %v", err))
	}
	st := store.New(kv, log, cfg.Market.StartingCoins)

	existing, err := st.Fields(ctx)
	if err != nil {
		log.Fatal("STORE", fmt.Sprintf("Failed to read stored fields: %v", err))
	}
	seen := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		seen[f.ID] = struct{}{}
	}

	written := 0
	for _, l := range valid {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		if err := st.AddField(ctx, l); err != nil {
			log.Fatal("STORE", fmt.Sprintf("Failed to store %s: %v", l.ID, err))
		}
		written++
	}
	log.Info("CATALOG", fmt.Sprintf("Stored %d new fields (%d already present)", written, len(valid)-written))
}
