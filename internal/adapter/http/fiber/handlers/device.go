package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type DeviceHandler struct {
	gate      ports.OwnershipGate
	anomalies ports.AnomalyService
	log       *zap.Logger
}

func NewDeviceHandler(gate ports.OwnershipGate, anomalies ports.AnomalyService, log *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		gate:      gate,
		anomalies: anomalies,
		log:       log,
	}
}

func (h *DeviceHandler) Stats(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	window, err := parseWindow("window", c.Query("window"))
	if err != nil {
		return err
	}

	stats, err := h.anomalies.Stats(c.UserContext(), caller, c.Params("id"), window)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// Anomalies lists the device's flagged readings in the trailing window.
func (h *DeviceHandler) Anomalies(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	window, err := parseWindow("window", c.Query("window"))
	if err != nil {
		return err
	}

	recs, err := h.anomalies.ListAnomalies(c.UserContext(), caller, c.Params("id"), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"device_id": c.Params("id"), "anomalies": recs})
}

// Detect runs one detection over the device. Flags are written back, so
// the caller needs write access.
func (h *DeviceHandler) Detect(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req struct {
		Window    string  `json:"window"`
		Threshold float64 `json:"threshold"`
		Method    string  `json:"method"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	window, err := parseWindow("window", req.Window)
	if err != nil {
		return err
	}

	deviceID := c.Params("id")
	if _, err := h.gate.Authorize(c.UserContext(), caller, deviceID, domain.PermissionWrite); err != nil {
		return err
	}

	report, err := h.anomalies.DetectAnomalies(c.UserContext(), deviceID, ports.DetectionOptions{
		Window:    window,
		Threshold: req.Threshold,
		Method:    req.Method,
	})
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// Claim makes the caller the owner of an unowned device.
func (h *DeviceHandler) Claim(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	device, err := h.gate.Claim(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(device)
}
