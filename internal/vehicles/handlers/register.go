package handlers

import (
	"errors"
	"net/http"
	"toll-payment/internal/phone"
	"toll-payment/internal/vehicles"
	"toll-payment/internal/vehicles/entities"
	"toll-payment/internal/vehicles/repository"

	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	LicensePlate string `json:"licensePlate"`
	OwnerName    string `json:"ownerName"`
	Contact      string `json:"contact"`
	CarType      string `json:"carType"`
	Brand        string `json:"brand"`
	Color        string `json:"color"`
}

type RegisterHandler struct {
	vehicleService *vehicles.Service
}

func NewRegisterHandler(s *vehicles.Service) *RegisterHandler {
	return &RegisterHandler{vehicleService: s}
}

func (h *RegisterHandler) Handle(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	v, err := h.vehicleService.Register(c.Request().Context(), entities.Vehicle{
		LicensePlate: req.LicensePlate,
		OwnerName:    req.OwnerName,
		PhoneNumber:  req.Contact,
		CarType:      req.CarType,
		Brand:        req.Brand,
		Color:        req.Color,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, map[string]any{"registered": true, "vehicle": v})
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return c.JSON(http.StatusConflict, map[string]string{"error": "vehicle already registered"})
	case errors.Is(err, phone.ErrInvalidPhoneFormat):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Invalid contact number format"})
	case errors.Is(err, vehicles.ErrInvalidPlate), errors.Is(err, vehicles.ErrMissingOwner):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to register vehicle"})
	}
}
