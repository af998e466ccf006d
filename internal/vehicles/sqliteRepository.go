package vehicles

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"toll-payment/internal/vehicles/entities"
	"toll-payment/internal/vehicles/repository"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vehicles (
			license_plate TEXT PRIMARY KEY,
			owner_name    TEXT NOT NULL,
			phone_number  TEXT NOT NULL,
			car_type      TEXT NOT NULL DEFAULT '',
			brand         TEXT NOT NULL DEFAULT '',
			color         TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Register(ctx context.Context, v entities.Vehicle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicles (license_plate, owner_name, phone_number, car_type, brand, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.LicensePlate, v.OwnerName, v.PhoneNumber, v.CarType, v.Brand, v.Color, v.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return repository.ErrAlreadyRegistered
	}
	return err
}

func (r *SQLiteRepository) Lookup(ctx context.Context, plate string) (entities.Vehicle, error) {
	var v entities.Vehicle
	var createdAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT license_plate, owner_name, phone_number, car_type, brand, color, created_at
		FROM vehicles WHERE license_plate = ?
	`, plate).Scan(&v.LicensePlate, &v.OwnerName, &v.PhoneNumber, &v.CarType, &v.Brand, &v.Color, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Vehicle{}, repository.ErrNotFound
	}
	if err != nil {
		return entities.Vehicle{}, err
	}
	v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	return v, err
}
