package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type AdminHandler struct {
	sweeper ports.SweepService
	devices ports.DeviceRepository
	log     *zap.Logger
}

func NewAdminHandler(sweeper ports.SweepService, devices ports.DeviceRepository, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		devices: devices,
		log:     log,
	}
}

// Sweep runs anomaly detection over the given devices, or the whole fleet
// when none are given, and returns the per-device outcome.
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	var req struct {
		DeviceIDs        []string `json:"device_ids"`
		ConcurrencyLimit int      `json:"concurrency_limit"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ConcurrencyLimit < 0 {
		return domain.NewValidationError("concurrency_limit", "must not be negative")
	}

	ids := req.DeviceIDs
	if len(ids) == 0 {
		all, err := h.devices.ListIDs(c.UserContext())
		if err != nil {
			return err
		}
		ids = all
	}

	caller, _ := callerID(c)
	h.log.Info("Sweep requested",
		zap.String("audit", "anomaly.sweep"),
		zap.String("user_id", caller),
		zap.Int("devices", len(ids)),
	)

	result, err := h.sweeper.SweepAll(c.UserContext(), ids, req.ConcurrencyLimit)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
