package controller

import (
	"context"
	"encoding/json"

	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/pkg/serverutils"
	"clinical-assistant-be/internal/service"
	ws "clinical-assistant-be/internal/websocket"
	"clinical-assistant-be/pkg/live"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ILiveController interface {
	RegisterRoutes(r fiber.Router)
	ResetPlan(ctx *fiber.Ctx) error
	AddPlan(ctx *fiber.Ctx) error
	MarkAsked(ctx *fiber.Ctx) error
	AppendHistory(ctx *fiber.Ctx) error
	Unasked(ctx *fiber.Ctx) error
	StopBundle(ctx *fiber.Ctx) error
	FollowupChat(ctx *fiber.Ctx) error
}

type liveController struct {
	liveService service.ILiveService
	hub         *ws.Hub
	auth        fiber.Handler
}

// NewLiveController mounts the websocket endpoint only when hub is set.
func NewLiveController(liveService service.ILiveService, hub *ws.Hub, auth fiber.Handler) ILiveController {
	return &liveController{
		liveService: liveService,
		hub:         hub,
		auth:        auth,
	}
}

func (c *liveController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/live")
	h.Use(c.auth)
	h.Use(requireSession)
	h.Post("reset_plan", c.ResetPlan)
	h.Post("plan", c.AddPlan)
	h.Post("mark_asked", c.MarkAsked)
	h.Post("history", c.AppendHistory)
	h.Get("unasked", c.Unasked)
	h.Post("stop_bundle", c.StopBundle)
	h.Post("followup_chat", c.FollowupChat)

	if c.hub != nil {
		h.Get("ws", upgradeOnly, websocket.New(c.serveSocket))
	}
}

// requireSession resolves the live session key once per request.
func requireSession(ctx *fiber.Ctx) error {
	key := live.Key{
		Identity:     serverutils.UserID(ctx),
		Conversation: serverutils.ConversationID(ctx),
	}
	if key.Conversation == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing conversation id (X-Conversation-Id header or cid query)")
	}
	ctx.Locals("live_key", key)
	return ctx.Next()
}

func sessionKey(ctx *fiber.Ctx) live.Key {
	key, _ := ctx.Locals("live_key").(live.Key)
	return key
}

func upgradeOnly(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// parseBody treats an empty body as an empty request.
func parseBody(ctx *fiber.Ctx, out interface{}) error {
	if len(ctx.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(ctx.Body(), out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	return nil
}

func (c *liveController) ResetPlan(ctx *fiber.Ctx) error {
	if err := c.liveService.ResetPlan(ctx.UserContext(), sessionKey(ctx)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Live plan reset", nil))
}

func (c *liveController) AddPlan(ctx *fiber.Ctx) error {
	var req dto.AddPlanRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.liveService.AddPlan(ctx.UserContext(), sessionKey(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Plan updated", res))
}

func (c *liveController) MarkAsked(ctx *fiber.Ctx) error {
	var req dto.MarkAskedRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.liveService.MarkAsked(ctx.UserContext(), sessionKey(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Questions matched", res))
}

func (c *liveController) AppendHistory(ctx *fiber.Ctx) error {
	var req dto.AppendHistoryRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.liveService.AppendHistory(ctx.UserContext(), sessionKey(ctx), &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("History appended", nil))
}

func (c *liveController) Unasked(ctx *fiber.Ctx) error {
	res, err := c.liveService.Unasked(ctx.UserContext(), sessionKey(ctx), ctx.Query("lang"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Unasked questions", res))
}

func (c *liveController) StopBundle(ctx *fiber.Ctx) error {
	var req dto.StopBundleRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.liveService.StopBundle(ctx.UserContext(), sessionKey(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Live session stopped", res))
}

func (c *liveController) FollowupChat(ctx *fiber.Ctx) error {
	var req dto.FollowupChatRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.liveService.FollowupChat(ctx.UserContext(), sessionKey(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Follow-up answer", res))
}

func (c *liveController) serveSocket(conn *websocket.Conn) {
	key, _ := conn.Locals("live_key").(live.Key)
	ws.ServeWs(c.hub, conn, key, c.handleFrame)
}

// handleFrame runs one websocket frame through the same service calls as
// the HTTP routes.
func (c *liveController) handleFrame(ctx context.Context, key live.Key, raw []byte) []byte {
	var frame dto.LiveFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return encodeReply(dto.LiveFrameReply{Type: "error", Error: "invalid frame"})
	}

	var (
		data interface{}
		err  error
	)
	switch frame.Type {
	case "history":
		err = c.liveService.AppendHistory(ctx, key, &dto.AppendHistoryRequest{Role: frame.Role, Message: frame.Message})
	case "plan":
		data, err = c.liveService.AddPlan(ctx, key, &dto.AddPlanRequest{Required: frame.Required})
	case "mark_asked":
		data, err = c.liveService.MarkAsked(ctx, key, &dto.MarkAskedRequest{Text: frame.Text})
	case "unasked":
		data, err = c.liveService.Unasked(ctx, key, frame.Lang)
	case "ping":
		return encodeReply(dto.LiveFrameReply{Type: "pong"})
	default:
		return encodeReply(dto.LiveFrameReply{Type: "error", Error: "unknown frame type: " + frame.Type})
	}

	if err != nil {
		return encodeReply(dto.LiveFrameReply{Type: frame.Type, Error: err.Error()})
	}
	return encodeReply(dto.LiveFrameReply{Type: frame.Type, Data: data})
}

func encodeReply(reply dto.LiveFrameReply) []byte {
	out, _ := json.Marshal(reply)
	return out
}
