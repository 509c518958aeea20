package controller

import (
	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/pkg/serverutils"
	"clinical-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICaseController interface {
	RegisterRoutes(r fiber.Router)
	Search(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
	GetCase(ctx *fiber.Ctx) error
}

type caseController struct {
	caseService service.ICaseService
	auth        fiber.Handler
}

func NewCaseController(caseService service.ICaseService, auth fiber.Handler) ICaseController {
	return &caseController{
		caseService: caseService,
		auth:        auth,
	}
}

func (c *caseController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/cases")
	h.Use(c.auth)
	h.Post("search", c.Search)
	h.Get("stats", c.Stats)
	h.Get(":id", c.GetCase)
}

func (c *caseController) Search(ctx *fiber.Ctx) error {
	var req dto.SearchCasesRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.caseService.Search(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Search completed", res))
}

func (c *caseController) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Index stats", c.caseService.Stats(ctx.UserContext())))
}

func (c *caseController) GetCase(ctx *fiber.Ctx) error {
	res, err := c.caseService.GetCase(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Case retrieved", res))
}
