package main

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gto_dupfinder/internal/adapters/gto"
	"gto_dupfinder/internal/adapters/observability"
	"gto_dupfinder/internal/app"
	"gto_dupfinder/internal/domain"
	"gto_dupfinder/internal/shared"
)

// One-shot scan runner: starts a scan over the given cities and polls its
// state until it reaches a terminal status.
func main() {
	cities := flag.String("cities", "", "comma-separated city ids (required)")
	country := flag.Int64("country", 0, "optional country id")
	rps := flag.Float64("rps", 0, "requests per second (default from env)")
	scanType := flag.String("type", "duplicates", "scan type: duplicates|errors")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	cityIDs, err := parseIDs(*cities)
	if err != nil || len(cityIDs) == 0 {
		log.Fatal().Err(err).Msg("-cities must list at least one numeric city id")
	}
	if *rps == 0 {
		*rps = cfg.ScanRPS
	}

	client, err := gto.New(cfg.GTOBase, cfg.GTOKey, *rps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize GTO client")
	}

	store := app.NewScanStore(cfg.MaxScans, time.Duration(cfg.HistoryTTLSec)*time.Second)
	scans := app.NewScanService(client, store, nil, cfg.EnrichWorkers, cfg.DetailTTLSec)

	scope := domain.Scope{CityIDs: cityIDs}
	if *country != 0 {
		scope.CountryID = country
	}
	id, err := scans.Start(scope, *rps, domain.ScanType(*scanType))
	if err != nil {
		log.Fatal().Err(err).Msg("scan start failed")
	}
	log.Info().Str("scan", id).Ints64("cities", cityIDs).Msg("scan started")

	for {
		time.Sleep(500 * time.Millisecond)
		snap, ok := scans.Status(id)
		if !ok {
			log.Fatal().Str("scan", id).Msg("scan disappeared from store")
		}
		if !snap.Status.Terminal() {
			log.Info().
				Int("pct", snap.ProgressPct).
				Int("hotels", snap.Counters.HotelsLoaded).
				Int("comparisons", snap.Counters.ComparisonsDone).
				Msg("progress")
			continue
		}
		if snap.Status == domain.StatusError {
			log.Fatal().Str("error", snap.Error).Msg("scan failed")
		}
		for _, row := range snap.Rows {
			ev := log.Info().
				Str("name", row.HotelName).
				Int64("id", row.PrimaryID).
				Str("flag", row.Flag).
				Str("reason", row.Reason)
			if row.Confidence != nil {
				ev = ev.Float64("confidence", *row.Confidence)
			}
			ev.Msg("flagged")
		}
		log.Info().
			Str("status", string(snap.Status)).
			Int("rows", len(snap.Rows)).
			Int64("requests", snap.Stats.RequestCount).
			Float64("avg_ms", snap.Stats.AvgResponseMs).
			Msg("scan finished")
		return
	}
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
