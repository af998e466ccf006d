package vehicles

import (
	"context"
	"sync"
	"toll-payment/internal/vehicles/entities"
	"toll-payment/internal/vehicles/repository"
)

type InMemoryVehicleDB struct {
	mu    sync.RWMutex
	store map[string]entities.Vehicle
}

func NewInMemoryVehicleDB() *InMemoryVehicleDB {
	return &InMemoryVehicleDB{store: make(map[string]entities.Vehicle)}
}

func (db *InMemoryVehicleDB) Register(ctx context.Context, v entities.Vehicle) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.store[v.LicensePlate]; exists {
		return repository.ErrAlreadyRegistered
	}
	db.store[v.LicensePlate] = v
	return nil
}

func (db *InMemoryVehicleDB) Lookup(ctx context.Context, plate string) (entities.Vehicle, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.store[plate]
	if !ok {
		return entities.Vehicle{}, repository.ErrNotFound
	}
	return v, nil
}
