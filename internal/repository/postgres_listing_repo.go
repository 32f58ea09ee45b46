package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/plantswap/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// Create は出品を作成し、採番済みの出品を返す。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) (*model.Listing, error) {
	created := &model.Listing{}
	var identifiedPlant sql.NullString

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO listings (title, description, author, listing_type, thumbnail, tradeable, identified_plant)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, title, description, created_at, author, listing_type, thumbnail, tradeable, identified_plant`,
		listing.Title, listing.Description, listing.AuthorID,
		string(listing.Type), listing.Thumbnail, listing.Tradeable, listing.IdentifiedPlant,
	).Scan(
		&created.ID, &created.Title, &created.Description, &created.CreatedAt,
		&created.AuthorID, &created.Type, &created.Thumbnail, &created.Tradeable,
		&identifiedPlant,
	)
	if err != nil {
		return nil, fmt.Errorf("出品の作成に失敗しました: %w", err)
	}

	if identifiedPlant.Valid {
		created.IdentifiedPlant = &identifiedPlant.String
	}

	return created, nil
}

// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	listing := &model.Listing{}
	var identifiedPlant sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, created_at, author, listing_type, thumbnail, tradeable, identified_plant
		 FROM listings WHERE id = $1`,
		id,
	).Scan(
		&listing.ID, &listing.Title, &listing.Description, &listing.CreatedAt,
		&listing.AuthorID, &listing.Type, &listing.Thumbnail, &listing.Tradeable,
		&identifiedPlant,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}

	if identifiedPlant.Valid {
		listing.IdentifiedPlant = &identifiedPlant.String
	}

	return listing, nil
}

// List は出品の一覧を新しい順に返す。limitで件数を制限する。
func (r *PostgresListingRepo) List(ctx context.Context, limit int) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, created_at, author, listing_type, thumbnail, tradeable, identified_plant
		 FROM listings
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var listings []*model.Listing
	for rows.Next() {
		listing := &model.Listing{}
		var identifiedPlant sql.NullString

		if err := rows.Scan(
			&listing.ID, &listing.Title, &listing.Description, &listing.CreatedAt,
			&listing.AuthorID, &listing.Type, &listing.Thumbnail, &listing.Tradeable,
			&identifiedPlant,
		); err != nil {
			return nil, fmt.Errorf("出品一覧の読み取りに失敗しました: %w", err)
		}

		if identifiedPlant.Valid {
			listing.IdentifiedPlant = &identifiedPlant.String
		}

		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出品一覧の走査に失敗しました: %w", err)
	}

	return listings, nil
}

// Update は出品を部分更新し、更新後の出品を返す。
// nilのフィールドは変更しない。対象が存在しない場合はnilを返す。
func (r *PostgresListingRepo) Update(ctx context.Context, update *model.ListingUpdate) (*model.Listing, error) {
	var sets []string
	var args []any
	args = append(args, update.ID)

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Title != nil {
		addSet("title", *update.Title)
	}
	if update.Description != nil {
		addSet("description", *update.Description)
	}
	if update.Type != nil {
		addSet("listing_type", string(*update.Type))
	}
	if update.Thumbnail != nil {
		addSet("thumbnail", *update.Thumbnail)
	}
	if update.Tradeable != nil {
		addSet("tradeable", *update.Tradeable)
	}
	if update.IdentifiedPlant != nil {
		addSet("identified_plant", *update.IdentifiedPlant)
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, update.ID)
	}

	listing := &model.Listing{}
	var identifiedPlant sql.NullString

	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(
			`UPDATE listings SET %s
			 WHERE id = $1
			 RETURNING id, title, description, created_at, author, listing_type, thumbnail, tradeable, identified_plant`,
			strings.Join(sets, ", "),
		),
		args...,
	).Scan(
		&listing.ID, &listing.Title, &listing.Description, &listing.CreatedAt,
		&listing.AuthorID, &listing.Type, &listing.Thumbnail, &listing.Tradeable,
		&identifiedPlant,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}

	if identifiedPlant.Valid {
		listing.IdentifiedPlant = &identifiedPlant.String
	}

	return listing, nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
