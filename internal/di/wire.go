// Package di wires the application together: database, store,
// simulation engine, clock, and HTTP server.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/config"
	"github.com/nedlands/propnet/internal/database"
	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/events"
	"github.com/nedlands/propnet/internal/eventgen"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/metrics"
	"github.com/nedlands/propnet/internal/narrator"
	"github.com/nedlands/propnet/internal/npc"
	"github.com/nedlands/propnet/internal/pipeline"
	"github.com/nedlands/propnet/internal/reliability"
	"github.com/nedlands/propnet/internal/scheduler"
	"github.com/nedlands/propnet/internal/server"
	"github.com/nedlands/propnet/internal/store"
)

// nightlyRetentionDays bounds how long cloud backups are kept.
const nightlyRetentionDays = 30

// Container holds every wired component. Close releases them in
// reverse dependency order.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	DB    *database.DB
	Store *store.Store
	Bus   *events.Bus

	Calibration market.Calibration
	Model       *market.Model
	MarketState *market.State

	Generator *eventgen.Generator
	NPCs      *npc.Engine
	Processor *actions.Processor
	Narrator  *narrator.Narrator
	Pipeline  *pipeline.Pipeline
	Clock     *clock.Clock
	Metrics   *metrics.Service

	Backups   *reliability.BackupService
	Cloud     *reliability.CloudBackupService // nil when not configured
	Scheduler *scheduler.Scheduler
	Server    *server.Server
}

// Wire initializes all dependencies and returns a fully configured
// container. Order of operations:
// 1. Database and schema
// 2. Store and simulation engine
// 3. Clock, resumed from the latest committed snapshot
// 4. Backups, scheduled maintenance, HTTP server
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "network",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open network database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate network database: %w", err)
	}

	st := store.New(db, log)
	bus := events.NewBus(log)

	cal := market.DefaultCalibration()
	model := market.NewModel(log)
	state := market.NewState()

	generator := eventgen.New(model, cal, log)
	npcs := npc.NewEngine(st, cal, log)
	processor := actions.NewProcessor(st, log)

	narr, err := narrator.New(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize narrator: %w", err)
	}

	pipe := pipeline.New(st, model, state, generator, npcs, processor, narr, cfg.ClockSeed, log)

	// Resume from committed history: the clock's current month is the
	// last snapshot's month, or month 1 on a fresh database.
	startMonth := 1
	if latest, err := st.Snapshots.GetLatest(st.DB()); err == nil && latest != nil {
		startMonth = latest.NetworkMonth
	}

	clk, err := clock.New(cfg.ClockPreset, startMonth, pipe, bus, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize clock: %w", err)
	}

	if _, err := npcs.EnsureParticipants(st.DB()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed participants: %w", err)
	}
	if err := seedProperties(st, cal, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed properties: %w", err)
	}

	backups := reliability.NewBackupService(db, cfg.BackupsDir(), log)

	var cloud *reliability.CloudBackupService
	if cfg.CloudBackupEnabled() {
		s3, err := reliability.NewS3Client(
			cfg.BackupAccessKey, cfg.BackupSecretKey,
			cfg.BackupRegion, cfg.BackupEndpoint, cfg.BackupBucket,
			log,
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize backup S3 client: %w", err)
		}
		cloud = reliability.NewCloudBackupService(s3, backups, log)
	}

	sched := scheduler.New(log)
	if err := sched.AddJob("0 0 * * * *", reliability.NewHourlyCheckpointJob(db, log)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to schedule hourly checkpoint: %w", err)
	}
	nightly := reliability.NewNightlyMaintenanceJob(db, backups, cloud, cfg.DataDir, nightlyRetentionDays, log)
	if err := sched.AddJob("0 0 2 * * *", nightly); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to schedule nightly maintenance: %w", err)
	}

	metricsSvc := metrics.New(st, log)

	srv := server.New(server.Config{
		Log:         log,
		Config:      cfg,
		DB:          db,
		Store:       st,
		Clock:       clk,
		Bus:         bus,
		Processor:   processor,
		NPCs:        npcs,
		Narrator:    narr,
		Metrics:     metricsSvc,
		Pipeline:    pipe,
		Calibration: &cal,
		Backups:     backups,
		Cloud:       cloud,
	})

	log.Info().Int("start_month", startMonth).Msg("Dependency wiring completed")

	return &Container{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Store:       st,
		Bus:         bus,
		Calibration: cal,
		Model:       model,
		MarketState: state,
		Generator:   generator,
		NPCs:        npcs,
		Processor:   processor,
		Narrator:    narr,
		Pipeline:    pipe,
		Clock:       clk,
		Metrics:     metricsSvc,
		Backups:     backups,
		Cloud:       cloud,
		Scheduler:   sched,
		Server:      srv,
	}, nil
}

// Close releases container resources. Safe to call once, after the
// clock and server have been stopped.
func (c *Container) Close() {
	if c.Narrator != nil {
		if err := c.Narrator.Close(); err != nil {
			c.Log.Warn().Err(err).Msg("Failed to close narrator")
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

// seedProperty describes one entry of the initial property set.
type seedProperty struct {
	address      string
	suburb       string
	propertyType string
	tenanted     bool
	valuation    float64
	weeklyRent   float64
}

// seedLeaseMonths is the lease length written for seeded tenancies.
const seedLeaseMonths = 12

// seedProperties inserts the initial Perth property set on a fresh
// database. Valuations and rents follow the calibration medians; token
// price is valuation over the fixed token supply. Tenanted seeds are
// leased to the NPC renter participants, one lease per renter, so a
// tenanted property always carries a tenant and a live lease window.
func seedProperties(st *store.Store, cal market.Calibration, log zerolog.Logger) error {
	existing, err := st.Properties.List(st.DB(), "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	renters, err := st.Participants.List(st.DB(), domain.KindNPC, domain.RoleRenter)
	if err != nil {
		return err
	}

	seeds := []seedProperty{
		{"14 Cottesloe Parade", "Cottesloe", "house", true, cal.MedianHousePrice * 1.6, cal.MedianWeeklyRent * 1.5},
		{"8 Banksia Street", "Subiaco", "house", true, cal.MedianHousePrice * 1.2, cal.MedianWeeklyRent * 1.2},
		{"42 Wellington Road", "Midland", "house", true, cal.MedianHousePrice * 0.8, cal.MedianWeeklyRent * 0.9},
		{"3/117 Stirling Highway", "Claremont", "apartment", true, cal.MedianHousePrice * 0.6, cal.MedianHousePrice * 0.6 * cal.TargetYieldUnit / 52},
		{"22/5 Harbour Quays", "Fremantle", "apartment", false, cal.MedianHousePrice * 0.55, cal.MedianHousePrice * 0.55 * cal.TargetYieldUnit / 52},
		{"67 Ironbark Avenue", "Baldivis", "house", false, cal.MedianHousePrice * 0.7, cal.MedianWeeklyRent * 0.85},
	}

	totalTokens := decimal.NewFromInt(100000)
	tenanted := 0

	for _, s := range seeds {
		valuation := decimal.NewFromFloat(s.valuation).Round(2)
		rent := decimal.NewFromFloat(s.weeklyRent).Round(2)
		prop := &domain.PropertyState{
			Address:            s.address,
			Suburb:             s.suburb,
			PropertyType:       s.propertyType,
			Status:             domain.PropertyAvailable,
			EnabledAtMonth:     1,
			TotalTokens:        totalTokens,
			TokensAvailable:    totalTokens,
			TokenPrice:         valuation.Div(totalTokens).Round(4),
			WeeklyRent:         rent,
			CurrentValuation:   valuation,
			LastValuationMonth: 1,
		}
		if err := st.Properties.Create(st.DB(), prop); err != nil {
			return err
		}

		// Lease tenanted seeds to renters until the renter pool runs
		// out; the remainder stay available.
		if s.tenanted && tenanted < len(renters) {
			renter := renters[tenanted]
			if _, err := st.Properties.SetTenant(st.DB(), prop.ID, renter.ID, rent, 1, seedLeaseMonths); err != nil {
				return err
			}
			tenanted++
		}
	}

	log.Info().Int("count", len(seeds)).Int("tenanted", tenanted).Msg("Seeded initial property set")
	return nil
}
