package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
)

type AddressHandler struct {
	DB *gorm.DB
}

func (h *AddressHandler) ListAddresses(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var addresses []models.Address
	if err := h.DB.Where("user_id = ?", uid).Order("id ASC").Find(&addresses).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, addresses)
}

type addressRequest struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

func (h *AddressHandler) CreateAddress(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	addr := models.Address{
		UserID:     uid,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}
	if err := h.DB.Create(&addr).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, addr)
}

func (h *AddressHandler) DeleteAddress(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.DB.Where("id = ? AND user_id = ?", id, uid).Delete(&models.Address{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
