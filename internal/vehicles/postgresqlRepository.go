package vehicles

import (
	"context"
	"errors"
	"toll-payment/internal/vehicles/entities"
	"toll-payment/internal/vehicles/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
	license_plate TEXT PRIMARY KEY,
	owner_name    TEXT NOT NULL,
	phone_number  TEXT NOT NULL,
	car_type      TEXT NOT NULL DEFAULT '',
	brand         TEXT NOT NULL DEFAULT '',
	color         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type VehiclePostgresRepository struct {
	pool *pgxpool.Pool
}

func NewVehiclePostgresRepository(pool *pgxpool.Pool) *VehiclePostgresRepository {
	return &VehiclePostgresRepository{pool: pool}
}

func (r *VehiclePostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresSchema)
	return err
}

func (r *VehiclePostgresRepository) Register(ctx context.Context, v entities.Vehicle) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vehicles (license_plate, owner_name, phone_number, car_type, brand, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.LicensePlate, v.OwnerName, v.PhoneNumber, v.CarType, v.Brand, v.Color, v.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrAlreadyRegistered
	}
	return err
}

func (r *VehiclePostgresRepository) Lookup(ctx context.Context, plate string) (entities.Vehicle, error) {
	var v entities.Vehicle
	err := r.pool.QueryRow(ctx, `
		SELECT license_plate, owner_name, phone_number, car_type, brand, color, created_at
		FROM vehicles WHERE license_plate = $1
	`, plate).Scan(&v.LicensePlate, &v.OwnerName, &v.PhoneNumber, &v.CarType, &v.Brand, &v.Color, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Vehicle{}, repository.ErrNotFound
	}
	return v, err
}
