package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medisched/slot-scheduling/internal/db"
	"github.com/medisched/slot-scheduling/internal/scheduling"
)

// Seeds two weeks of slot inventory for a set of fake providers, using
// the same weekly-template expansion the API exposes.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	repo := scheduling.NewPgRepository(pool)
	registry := scheduling.NewRegistry(repo, logger)

	const providerCount = 25

	from := time.Now()
	to := from.AddDate(0, 0, 14)

	totalCreated := 0
	for i := 0; i < providerCount; i++ {
		providerID := uuid.New()
		locationID := uuid.New()
		tmpl := randomTemplate()

		result, err := registry.BulkCreateFromTemplate(context.Background(), providerID, locationID, from, to, tmpl)
		if err != nil {
			logger.Fatal().Err(err).Str("provider_id", providerID.String()).Msg("bulk create failed")
		}

		totalCreated += result.Created
		logger.Info().
			Str("provider_id", providerID.String()).
			Int("created", result.Created).
			Int("conflicts", len(result.Conflicts)).
			Msg("provider seeded")
	}

	logger.Info().Int("total_slots", totalCreated).Msg("seed complete")
}

func randomTemplate() scheduling.WeeklyTemplate {
	kinds := []scheduling.SlotKind{scheduling.KindInPerson, scheduling.KindTeleconsult}
	lengths := []time.Duration{15 * time.Minute, 20 * time.Minute, 30 * time.Minute}

	morningStarts := []string{"08:00", "08:30", "09:00"}
	afternoonEnds := []string{"16:00", "17:00", "17:30"}

	blocks := map[time.Weekday][]scheduling.TimeBlock{}
	for day := time.Monday; day <= time.Friday; day++ {
		// Some providers skip a weekday or two.
		if gofakeit.Number(0, 4) == 0 {
			continue
		}
		blocks[day] = []scheduling.TimeBlock{
			{Start: morningStarts[gofakeit.Number(0, len(morningStarts)-1)], End: "12:00"},
			{Start: "13:00", End: afternoonEnds[gofakeit.Number(0, len(afternoonEnds)-1)]},
		}
	}

	return scheduling.WeeklyTemplate{
		Blocks:     blocks,
		SlotLength: lengths[gofakeit.Number(0, len(lengths)-1)],
		Kind:       kinds[gofakeit.Number(0, len(kinds)-1)],
	}
}
