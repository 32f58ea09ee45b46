package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/plantswap/internal/model"
)

// PostgresPlantRepo はPostgreSQLを使用した種カタログリポジトリ。
type PostgresPlantRepo struct {
	db *sql.DB
}

// NewPostgresPlantRepo はPostgresPlantRepoを生成する。
func NewPostgresPlantRepo(db *sql.DB) *PostgresPlantRepo {
	return &PostgresPlantRepo{db: db}
}

// FindByPowoID は自然キーで種レコードを検索する。見つからない場合はnilを返す。
func (r *PostgresPlantRepo) FindByPowoID(ctx context.Context, powoID string) (*model.Plant, error) {
	plant := &model.Plant{}
	var gbifID sql.NullInt64
	var habitat sql.NullString
	var producesFruit sql.NullBool
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, powo_id, gbif_id, human_name, species, habitat, produces_fruit, description
		 FROM plants WHERE powo_id = $1`,
		powoID,
	).Scan(
		&plant.ID, &plant.PowoID, &gbifID, &plant.HumanName,
		&plant.Species, &habitat, &producesFruit, &description,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("種レコードの検索に失敗しました: %w", err)
	}

	if gbifID.Valid {
		v := int(gbifID.Int64)
		plant.GbifID = &v
	}
	if habitat.Valid {
		h := model.Habitat(habitat.String)
		plant.Habitat = &h
	}
	if producesFruit.Valid {
		plant.ProducesFruit = &producesFruit.Bool
	}
	plant.Description = nullStringValue(description)

	return plant, nil
}

// Insert は種レコードを挿入する。同一powo_idの行が既に存在する場合は何もしない。
func (r *PostgresPlantRepo) Insert(ctx context.Context, plant *model.Plant) error {
	var habitat any
	if plant.Habitat != nil {
		habitat = string(*plant.Habitat)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plants (powo_id, gbif_id, human_name, species, habitat, produces_fruit, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (powo_id) DO NOTHING`,
		plant.PowoID, plant.GbifID, plant.HumanName, plant.Species,
		habitat, plant.ProducesFruit, nullString(plant.Description),
	)
	if err != nil {
		return fmt.Errorf("種レコードの挿入に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ PlantRepository = (*PostgresPlantRepo)(nil)
