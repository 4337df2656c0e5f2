package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/app/programs"
	"agentbridge/internal/app/runs"
	"agentbridge/internal/app/session"
	"agentbridge/internal/domain/world"
	"agentbridge/internal/protocol"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Session is the part of the session controller the HTTP surface drives.
type Session interface {
	Start(ctx context.Context, opts world.StartOptions) ([]world.Event, error)
	Step(ctx context.Context, req session.StepRequest) ([]world.Event, error)
	Stop(ctx context.Context)
	Pause(ctx context.Context) error
	Observe(ctx context.Context) ([]world.Event, error)
	Status() session.Status
}

type Handler struct {
	Session    Session
	RunsUC     runs.UseCase
	ProgramsUC programs.UseCase
	KPI        kpiSnapshotProvider
	// CORSOrigins lists the browser origins allowed to call the bridge.
	CORSOrigins []string
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware(h.CORSOrigins))

	s.POST("/start", h.start)
	s.POST("/step", h.step)
	s.POST("/stop", h.stop)
	s.POST("/pause", h.pause)
	s.GET("/state", h.state)
	s.GET("/status", h.status)

	s.GET("/runs", h.listRuns)
	s.GET("/runs/:id", h.getRun)

	s.GET("/programs/index.json", h.programsIndex)
	s.GET("/programs/*filepath", h.programsFile)
	s.GET("/ops/kpi", h.kpi)
}

type stepRequest struct {
	Code     string `json:"code"`
	Programs string `json:"programs"`
}

func (h Handler) start(c context.Context, ctx *app.RequestContext) {
	body := ctx.Request.Body()
	if !json.Valid(body) {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := protocol.Validate(protocol.SchemaStartRequest, body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var opts world.StartOptions
	if err := json.Unmarshal(body, &opts); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	entries, err := h.Session.Start(c, opts)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, entries)
}

func (h Handler) step(c context.Context, ctx *app.RequestContext) {
	body := ctx.Request.Body()
	if !json.Valid(body) {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := protocol.Validate(protocol.SchemaStepRequest, body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var req stepRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	events, err := h.Session.Step(c, session.StepRequest{Code: req.Code, Programs: req.Programs})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, events)
}

func (h Handler) stop(c context.Context, ctx *app.RequestContext) {
	h.Session.Stop(c)
	ctx.JSON(consts.StatusOK, map[string]string{"message": "Bot stopped"})
}

func (h Handler) pause(c context.Context, ctx *app.RequestContext) {
	if err := h.Session.Pause(c); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"message": "Success"})
}

func (h Handler) state(c context.Context, ctx *app.RequestContext) {
	entries, err := h.Session.Observe(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, entries)
}

func (h Handler) status(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.Session.Status())
}

func (h Handler) listRuns(c context.Context, ctx *app.RequestContext) {
	limit, _ := strconv.Atoi(string(ctx.Query("limit")))
	from, _ := strconv.ParseInt(string(ctx.Query("from")), 10, 64)
	to, _ := strconv.ParseInt(string(ctx.Query("to")), 10, 64)
	resp, err := h.RunsUC.List(c, runs.ListRequest{Limit: limit, From: from, To: to})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) getRun(c context.Context, ctx *app.RequestContext) {
	run, err := h.RunsUC.Get(c, ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, run)
}

func (h Handler) programsIndex(c context.Context, ctx *app.RequestContext) {
	b, err := h.ProgramsUC.Index(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "application/json", b)
}

func (h Handler) programsFile(c context.Context, ctx *app.RequestContext) {
	path := strings.TrimPrefix(ctx.Param("filepath"), "/")
	if path == "" {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_filepath", "invalid filepath")
		return
	}
	b, err := h.ProgramsUC.File(c, path)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "text/javascript; charset=utf-8", b)
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeErrorBody(ctx, consts.StatusBadRequest, "not_spawned", "Bot not spawned")
	case errors.Is(err, session.ErrSessionBusy):
		writeErrorBody(ctx, consts.StatusConflict, "session_busy", err.Error())
	case errors.Is(err, session.ErrConnection):
		writeErrorBody(ctx, consts.StatusInternalServerError, "connection_failed", err.Error())
	case errors.Is(err, session.ErrInvalidRequest),
		errors.Is(err, runs.ErrInvalidRequest),
		errors.Is(err, programs.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ports.ErrInvalidPath):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_filepath", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrWorldClosed):
		writeErrorBody(ctx, consts.StatusConflict, "world_closed", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "request_cancelled", err.Error())
	default:
		hlog.Errorf("unhandled error: %v", err)
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
