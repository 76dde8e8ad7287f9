package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"exam-access/internal/config"
	"exam-access/internal/domain/model"
	pg "exam-access/internal/infra/db/postgres"
	"exam-access/internal/infra/logging"
	"exam-access/internal/usecase"
)

// Seeds a small catalog, an admin role and a pool of access codes per
// material for local testing of the payment flow.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	perMaterial := flag.Int("codes", 20, "access codes to generate per material")
	admin := flag.String("admin", "", "user id to grant the admin role")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		logging.New(config.LogConfig{}, true).Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	seed := []model.Material{
		{ID: "form4-maths-2024", Title: "Form IV Basic Mathematics 2024", Category: "CSEE", Year: "2024", Price: 2000, DriveLink: "https://drive.google.com/file/d/form4-maths-2024"},
		{ID: "form4-physics-2024", Title: "Form IV Physics 2024", Category: "CSEE", Year: "2024", Price: 2000, DriveLink: "https://drive.google.com/file/d/form4-physics-2024"},
		{ID: "form6-chem-2023", Title: "Form VI Chemistry 2023", Category: "ACSEE", Year: "2023", Price: 3000, DriveLink: "https://drive.google.com/file/d/form6-chem-2023"},
	}
	for _, m := range seed {
		tag, err := pool.Exec(ctx, `
			INSERT INTO materials (id, title, category, year, drive_link, enabled, price)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
			ON CONFLICT (id) DO NOTHING`,
			m.ID, m.Title, m.Category, m.Year, m.DriveLink, m.Price)
		if err != nil {
			logger.Fatal().Err(err).Str("material", m.ID).Msg("insert material")
		}
		fmt.Printf("material %s (price=%d TZS) inserted=%t\n", m.ID, m.Price, tag.RowsAffected() == 1)
	}

	if *admin != "" {
		if _, err := pool.Exec(ctx, `
			INSERT INTO user_roles (user_id, role) VALUES ($1, 'admin')
			ON CONFLICT DO NOTHING`, *admin); err != nil {
			logger.Fatal().Err(err).Msg("grant admin")
		}
		fmt.Printf("admin role granted to %s\n", *admin)
	}

	codesUC := usecase.NewAccessCodeUseCase(pg.NewAccessCodeRepo(pool), pg.NewMaterialRepo(pool), nil, nil, usecase.AccessCodeConfig{
		MaxGenerate: cfg.Access.MaxGenerate,
		Dev:         true,
	}, logger)
	seeder := model.Identity{UserID: "seed", Role: model.RoleAdmin}
	for _, m := range seed {
		codes, err := codesUC.GenerateCodes(ctx, seeder, m.ID, *perMaterial)
		if err != nil {
			logger.Fatal().Err(err).Str("material", m.ID).Msg("generate codes")
		}
		fmt.Printf("material %s: %d codes added to the pool\n", m.ID, len(codes))
	}

	fmt.Println("Seeding complete.")
}
