package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type ModelHandler struct {
	gate        ports.OwnershipGate
	predictions ports.PredictionService
	log         *zap.Logger
}

func NewModelHandler(gate ports.OwnershipGate, predictions ports.PredictionService, log *zap.Logger) *ModelHandler {
	return &ModelHandler{
		gate:        gate,
		predictions: predictions,
		log:         log,
	}
}

func (h *ModelHandler) authorize(c *fiber.Ctx, perm domain.Permission) (string, error) {
	caller, err := callerID(c)
	if err != nil {
		return "", err
	}
	deviceID := c.Params("id")
	if _, err := h.gate.Authorize(c.UserContext(), caller, deviceID, perm); err != nil {
		return "", err
	}
	return deviceID, nil
}

func (h *ModelHandler) Train(c *fiber.Ctx) error {
	var req struct {
		Lookback  string                 `json:"lookback"`
		Algorithm string                 `json:"algorithm"`
		Params    map[string]interface{} `json:"params"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	lookback, err := parseWindow("lookback", req.Lookback)
	if err != nil {
		return err
	}

	deviceID, err := h.authorize(c, domain.PermissionWrite)
	if err != nil {
		return err
	}

	res, err := h.predictions.Train(c.UserContext(), deviceID, domain.TrainingOptions{
		Lookback:  lookback,
		Algorithm: req.Algorithm,
		Params:    req.Params,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *ModelHandler) Predict(c *fiber.Ctx) error {
	req := struct {
		Horizon    int     `json:"horizon"`
		Confidence float64 `json:"confidence"`
	}{Horizon: 24, Confidence: 0.95}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	deviceID, err := h.authorize(c, domain.PermissionRead)
	if err != nil {
		return err
	}

	points, err := h.predictions.Predict(c.UserContext(), deviceID, req.Horizon, req.Confidence)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"device_id":   deviceID,
		"predictions": points,
	})
}

// DetectRemote scores recent readings with the model service without
// writing any flags.
func (h *ModelHandler) DetectRemote(c *fiber.Ctx) error {
	var req struct {
		Window    string  `json:"window"`
		Method    string  `json:"method"`
		Threshold float64 `json:"threshold"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	window, err := parseWindow("window", req.Window)
	if err != nil {
		return err
	}

	deviceID, err := h.authorize(c, domain.PermissionRead)
	if err != nil {
		return err
	}

	results, err := h.predictions.DetectRemote(c.UserContext(), deviceID, window, req.Method, req.Threshold)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"device_id": deviceID,
		"results":   results,
	})
}
