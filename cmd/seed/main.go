package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/nutri-scheduling/internal/account"
	"github.com/hackgods/nutri-scheduling/internal/db"
	"github.com/hackgods/nutri-scheduling/internal/logging"
)

// Every seeded account logs in with this password.
const seedPassword = "nutri123"

var regions = []string{"SP", "RJ", "MG", "RS", "PR", "BA", "PE", "SC"}

var sexes = []string{"F", "M"}

// start and end of the windows offered each seeded day
var dayShapes = [][2]string{
	{"08:00", "12:00"},
	{"09:00", "11:30"},
	{"13:00", "17:00"},
	{"14:00", "18:30"},
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("APP_ENV", "dev"))
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool).Up(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	// bcrypt is slow, one hash serves every seeded account
	hash, err := account.HashPassword(seedPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash password")
	}

	providers, err := seedProviders(context.Background(), pool, logger, hash, getInt("SEED_PROVIDERS", 20))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedPatients(context.Background(), pool, logger, hash, getInt("SEED_PATIENTS", 2000)); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedWindows(context.Background(), pool, logger, providers, getInt("SEED_DAYS", 30)); err != nil {
		logger.Fatal().Err(err).Msg("seed windows")
	}

	logger.Info().Str("password", seedPassword).Msg("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, hash string, count int) ([]int64, error) {
	logger.Info().Int("count", count).Msg("seeding providers")

	durations := []int{30, 45, 60}
	ids := make([]int64, 0, count)

	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO providers (name, phone, email, password_hash, license_number,
				                       license_region, document_ref, appointment_minutes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id
			`,
				gofakeit.Name(),
				gofakeit.Phone(),
				uniqueEmail("nutri"),
				hash,
				strconv.Itoa(gofakeit.Number(10000, 99999))+strconv.Itoa(i),
				regions[gofakeit.Number(0, len(regions)-1)],
				"seed-"+strings.ReplaceAll(uuid.NewString(), "-", "")+".pdf",
				durations[gofakeit.Number(0, len(durations)-1)],
			).Scan(&id)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Int("count", len(ids)).Msg("providers seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, hash string, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				birth := gofakeit.DateRange(
					time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2006, 12, 31, 0, 0, 0, 0, time.UTC),
				)
				_, err := tx.Exec(ctx, `
					INSERT INTO patients (name, phone, sex, birth_date, email, password_hash)
					VALUES ($1, $2, $3, $4, $5, $6)
				`,
					gofakeit.Name(),
					gofakeit.Phone(),
					sexes[gofakeit.Number(0, len(sexes)-1)],
					birth,
					uniqueEmail("paciente"),
					hash,
				)
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

// seedWindows gives every provider one window per weekday over the next
// days days.
func seedWindows(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, providers []int64, days int) error {
	logger.Info().Int("providers", len(providers)).Int("days", days).Msg("seeding availability windows")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var inserted int64

	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, providerID := range providers {
			for d := 1; d <= days; d++ {
				date := today.AddDate(0, 0, d)
				if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
					continue
				}
				shape := dayShapes[gofakeit.Number(0, len(dayShapes)-1)]
				tag, err := tx.Exec(ctx, `
					INSERT INTO availability_windows (provider_id, year, month, day, start_time, end_time)
					VALUES ($1, $2, $3, $4, $5, $6)
					ON CONFLICT DO NOTHING
				`, providerID, date.Year(), int(date.Month()), date.Day(), shape[0], shape[1])
				if err != nil {
					return err
				}
				inserted += tag.RowsAffected()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Int64("count", inserted).Msg("availability windows seeded")
	return nil
}

// uniqueEmail keeps repeated seed runs clear of the email unique constraints.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s.%s@%s", prefix, uuid.NewString()[:8], gofakeit.DomainName())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
