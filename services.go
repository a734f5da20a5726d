package main

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const (
	serviceAutoClicker = "Auto-clicker"
	serviceAssistant   = "Assistant"
)

// pgOwnership answers auto-income ownership questions from the purchased
// services of a player.
type pgOwnership struct {
	db *sql.DB
}

func (o *pgOwnership) AutoIncomeLevel(ctx context.Context, playerID string) (int, error) {
	var level int
	err := o.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ps.level), 0)
		FROM player_services ps
		JOIN services s ON s.service_id = ps.service_id
		WHERE ps.player_id = $1 AND s.name = $2
	`, playerID, serviceAutoClicker).Scan(&level)
	if err != nil {
		return 0, storeError("auto-income level", err)
	}
	return level, nil
}

func (o *pgOwnership) HasPassiveBoostUpgrade(ctx context.Context, playerID string) (bool, error) {
	var owned bool
	err := o.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM player_services ps
			JOIN services s ON s.service_id = ps.service_id
			WHERE ps.player_id = $1 AND s.name = $2
		)
	`, playerID, serviceAssistant).Scan(&owned)
	if err != nil {
		return false, storeError("assistant lookup", err)
	}
	return owned, nil
}

type catalogService struct {
	Name        string
	Description string
	CostCoins   int64
}

var serviceCatalog = []catalogService{
	{Name: serviceAutoClicker, Description: "Earns coins every hour, even while you are away.", CostCoins: 5000},
	{Name: serviceAssistant, Description: "Raises offline auto-clicker earnings by half.", CostCoins: 25000},
}

func seedServiceCatalog(ctx context.Context, db *sql.DB) error {
	for _, svc := range serviceCatalog {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO services (service_id, name, description, cost_coins)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, uuid.New(), svc.Name, svc.Description, svc.CostCoins); err != nil {
			return err
		}
	}
	return nil
}
