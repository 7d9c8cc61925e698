package handlers

import (
	"net/url"

	"dashgate/internal/middleware"
	"dashgate/internal/models"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler serves the dashboard catalogue to authenticated users.
type DashboardHandler struct {
	dashboards []models.Dashboard
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboards []models.Dashboard) *DashboardHandler {
	return &DashboardHandler{
		dashboards: dashboards,
	}
}

// RegisterRoutes registers the dashboard routes. The router is expected to be
// guarded by middleware.AuthRequired.
func (h *DashboardHandler) RegisterRoutes(router fiber.Router) {
	dashboardRoutes := router.Group("/dashboards")
	dashboardRoutes.Get("/", h.HandleGetDashboards)
	dashboardRoutes.Get("/:name", h.HandleGetDashboard)
}

// HandleGetDashboards lists every configured dashboard.
func (h *DashboardHandler) HandleGetDashboards(c *fiber.Ctx) error {
	session := middleware.SessionFrom(c)
	if session == nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	return c.JSON(fiber.Map{
		"username":   session.Username,
		"dashboards": h.dashboards,
	})
}

// HandleGetDashboard returns a single dashboard by name.
func (h *DashboardHandler) HandleGetDashboard(c *fiber.Ctx) error {
	if middleware.SessionFrom(c) == nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid dashboard name",
		})
	}
	for _, d := range h.dashboards {
		if d.Name == name {
			return c.JSON(d)
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"message": "Dashboard not found",
	})
}
