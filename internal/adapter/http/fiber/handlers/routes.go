package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/energy-sentinel/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/energy-sentinel/internal/ports"
	"github.com/seu-repo/energy-sentinel/internal/service/auth"
)

// Routes bundles what the /api/v1 group needs.
type Routes struct {
	Validator   ports.TokenValidator
	RBAC        *auth.RBACService
	Consumption *ConsumptionHandler
	Devices     *DeviceHandler
	Models      *ModelHandler
	Admin       *AdminHandler
}

// Register mounts the authenticated API under r.
func (rt Routes) Register(r fiber.Router) {
	protected := r.Group("", middleware.AuthRequired(rt.Validator))
	allow := func(resource, action string) fiber.Handler {
		return middleware.RequirePermission(rt.RBAC, resource, action)
	}

	protected.Post("/consumption", allow(auth.ResourceConsumption, auth.ActionWrite), rt.Consumption.Record)
	protected.Post("/consumption/import", allow(auth.ResourceConsumption, auth.ActionWrite), rt.Consumption.Import)
	protected.Post("/consumption/:id/review", allow(auth.ResourceAnomalies, auth.ActionWrite), rt.Consumption.Review)

	devices := protected.Group("/devices/:id")
	devices.Get("/stats", allow(auth.ResourceConsumption, auth.ActionRead), rt.Devices.Stats)
	devices.Get("/anomalies", allow(auth.ResourceAnomalies, auth.ActionRead), rt.Devices.Anomalies)
	devices.Post("/anomalies/detect", allow(auth.ResourceAnomalies, auth.ActionWrite), rt.Devices.Detect)
	devices.Post("/anomalies/detect-remote", allow(auth.ResourceModels, auth.ActionRead), rt.Models.DetectRemote)
	devices.Post("/claim", allow(auth.ResourceDevices, auth.ActionWrite), rt.Devices.Claim)
	devices.Post("/model/train", allow(auth.ResourceModels, auth.ActionWrite), rt.Models.Train)
	devices.Post("/model/predict", allow(auth.ResourceModels, auth.ActionRead), rt.Models.Predict)

	admin := protected.Group("/admin", allow(auth.ResourceSweep, auth.ActionManage))
	admin.Post("/anomalies/sweep", rt.Admin.Sweep)
}
