package controller

import (
	"strings"

	"clinical-assistant-be/internal/pkg/serverutils"
	"clinical-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAnalyticsController interface {
	RegisterRoutes(r fiber.Router)
	DiseaseLikelihoods(ctx *fiber.Ctx) error
}

type analyticsController struct {
	likelihoodService service.ILikelihoodService
	auth              fiber.Handler
}

func NewAnalyticsController(likelihoodService service.ILikelihoodService, auth fiber.Handler) IAnalyticsController {
	return &analyticsController{
		likelihoodService: likelihoodService,
		auth:              auth,
	}
}

func (c *analyticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(c.auth)
	h.Get("conversation/:cid/disease_likelihoods", c.DiseaseLikelihoods)
}

func (c *analyticsController) DiseaseLikelihoods(ctx *fiber.Ctx) error {
	cid := strings.TrimSpace(ctx.Params("cid"))
	if cid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "conversation id is required")
	}

	res, err := c.likelihoodService.Get(ctx.UserContext(), cid, isTruthy(ctx.Query("force")))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Disease likelihoods", res))
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
