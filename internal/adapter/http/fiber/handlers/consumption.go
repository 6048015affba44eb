package handlers

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type ConsumptionHandler struct {
	ingestion ports.IngestionService
	anomalies ports.AnomalyService
	tempDir   string
	log       *zap.Logger
}

func NewConsumptionHandler(ingestion ports.IngestionService, anomalies ports.AnomalyService, tempDir string, log *zap.Logger) *ConsumptionHandler {
	return &ConsumptionHandler{
		ingestion: ingestion,
		anomalies: anomalies,
		tempDir:   tempDir,
		log:       log,
	}
}

// Import spools the uploaded CSV to a temp file and ingests it. The temp
// file is removed whatever the outcome.
func (h *ConsumptionHandler) Import(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return domain.NewValidationError("file", "multipart field file is required")
	}

	src, err := header.Open()
	if err != nil {
		return &domain.IOError{Op: "open upload", Err: err}
	}
	defer src.Close()

	tmp, err := os.CreateTemp(h.tempDir, "import-*.csv")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			h.log.Warn("Failed to remove import temp file", zap.String("path", tmp.Name()), zap.Error(err))
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return &domain.IOError{Op: "spool upload", Err: err}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return &domain.IOError{Op: "rewind upload", Err: err}
	}

	h.log.Info("Consumption import received",
		zap.String("user_id", caller),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
	)

	result, err := h.ingestion.Ingest(c.UserContext(), tmp, caller)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Record stores a single reading.
func (h *ConsumptionHandler) Record(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var in ports.ReadingInput
	if err := c.BodyParser(&in); err != nil {
		return domain.NewValidationError("body", "invalid JSON body")
	}

	rec, err := h.ingestion.RecordReading(c.UserContext(), caller, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// Review sets or resets the human review mark on a flagged record.
func (h *ConsumptionHandler) Review(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req struct {
		Reviewed *bool `json:"reviewed"`
	}
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("body", "invalid JSON body")
	}
	if req.Reviewed == nil {
		return domain.NewValidationError("reviewed", "required")
	}

	rec, err := h.anomalies.Review(c.UserContext(), caller, c.Params("id"), *req.Reviewed)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}
