package entities

import "time"

type Vehicle struct {
	LicensePlate string    `json:"licensePlate"`
	OwnerName    string    `json:"ownerName"`
	PhoneNumber  string    `json:"contact"`
	CarType      string    `json:"carType,omitempty"`
	Brand        string    `json:"brand,omitempty"`
	Color        string    `json:"color,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
