package controller

import (
	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/pkg/serverutils"
	"clinical-assistant-be/pkg/corpus"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	searcher corpus.Searcher
	db       *gorm.DB
}

// NewHealthController accepts a nil db when persistence is disabled.
func NewHealthController(searcher corpus.Searcher, db *gorm.DB) IHealthController {
	return &healthController{
		searcher: searcher,
		db:       db,
	}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	stats := c.searcher.Stats()
	res := dto.HealthResponse{
		Status:      "healthy",
		IndexLoaded: stats.Built,
		TotalCases:  stats.TotalCases,
		Database:    c.pingDB(),
	}
	if !stats.Built {
		res.Status = "degraded"
	}
	return ctx.JSON(serverutils.SuccessResponse("Service status", res))
}

func (c *healthController) pingDB() bool {
	if c.db == nil {
		return false
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}
