// Command example runs the store in-process with an in-memory backend
// and simulated devices: a handful of subjects across all three tiers
// walk random trajectories, their history is queried back, and one
// subject is erased at the end. Useful for demos and eyeballing logs.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/partition/memory"
	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/store"
	"github.com/trailhq/trailstore/pkg/tier"
)

// device is one simulated subject walking a random trajectory.
type device struct {
	subjectID string
	deviceID  string
	lat, lon  float64
}

func (d *device) step() location.Record {
	// Roughly 100 m of drift per tick.
	d.lat += (rand.Float64() - 0.5) * 0.002
	d.lon += (rand.Float64() - 0.5) * 0.002

	speed := rand.Float64() * 15
	acc := 5 + rand.Float64()*20
	return location.Record{
		SubjectID: d.subjectID,
		DeviceID:  d.deviceID,
		Position:  location.Position{Longitude: d.lon, Latitude: d.lat},
		Speed:     &speed,
		Accuracy:  &acc,
		Source:    location.SourceGPS,
	}
}

func main() {
	logging.Setup("debug", "console")
	log := logging.WithComponent("example")

	directory := tier.NewStaticDirectory()
	directory.Set("subject-vip", tier.Attributes{Subscription: "elevated"})
	directory.Set("subject-plus", tier.Attributes{Subscription: "premium"})
	directory.Set("subject-free", tier.Attributes{TrustScore: 0.2})

	deriver, err := shard.NewDeriver(shard.Config{
		Strategy:    shard.StrategyHybrid,
		Granularity: shard.Daily,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("deriver")
	}

	backend := memory.New()
	st := store.New(
		deriver,
		tier.NewClassifier(directory, 2*time.Second),
		partition.NewRegistry(backend),
		store.Options{},
	)

	devices := []*device{
		{subjectID: "subject-vip", deviceID: "phone-1", lat: 40.7484, lon: -73.9857},
		{subjectID: "subject-plus", deviceID: "phone-2", lat: 51.5007, lon: -0.1246},
		{subjectID: "subject-free", deviceID: "phone-3", lat: 35.6586, lon: 139.7454},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	write := time.NewTicker(500 * time.Millisecond)
	defer write.Stop()
	query := time.NewTicker(5 * time.Second)
	defer query.Stop()

	log.Info().Int("devices", len(devices)).Msg("simulation started, ctrl-c to stop")

loop:
	for {
		select {
		case <-quit:
			break loop
		case <-write.C:
			for _, d := range devices {
				rec := d.step()
				stored, err := st.RecordLocation(ctx, &rec)
				if err != nil {
					log.Error().Err(err).Str("subject", d.subjectID).Msg("write failed")
					continue
				}
				log.Debug().
					Str("subject", stored.SubjectID).
					Float64("lat", stored.Position.Latitude).
					Float64("lon", stored.Position.Longitude).
					Msg("recorded")
			}
		case <-query.C:
			for _, d := range devices {
				recs, err := st.QueryHistory(ctx, d.subjectID,
					time.Now().Add(-time.Hour), time.Now(), 5, store.Descending)
				if err != nil {
					log.Error().Err(err).Str("subject", d.subjectID).Msg("query failed")
					continue
				}
				log.Info().
					Str("subject", d.subjectID).
					Int("recent", len(recs)).
					Msg("history sample")
			}
		}
	}

	// Demonstrate erasure on the way out.
	log.Info().Msg("erasing subject-vip before exit")
	if err := st.EraseSubject(context.Background(), "subject-vip",
		time.Now().Add(-24*time.Hour), time.Now()); err != nil {
		log.Error().Err(err).Msg("erasure failed")
	} else {
		log.Info().Msg("subject-vip erased")
	}

	if err := backend.Close(); err != nil {
		log.Error().Err(err).Msg("backend close")
	}
	log.Info().Msg("example exited")
}
