package handler

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"trends-go/internal/service"
	"trends-go/pkg/compare"
	"trends-go/pkg/docstore"
	"trends-go/pkg/logger"
	"trends-go/pkg/runlog"
	"trends-go/pkg/task"
	"trends-go/pkg/trends"
)

const (
	defaultRunLimit = 50
	defaultStuckAge = 3 * time.Hour
	serviceMessage  = "Search Google Trends service is running."
)

type Controller struct {
	tasks   service.TaskService
	compare service.CompareService
	runs    service.RunService
	monitor service.MonitorService
	log     *logger.Logger
}

type StatusResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Worker    interface{} `json:"worker,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func NewController(
	tasks service.TaskService,
	compare service.CompareService,
	runs service.RunService,
	monitor service.MonitorService,
) *Controller {
	return &Controller{
		tasks:   tasks,
		compare: compare,
		runs:    runs,
		monitor: monitor,
		log:     logger.GetLogger().WithField("component", "http"),
	}
}

// NewApp builds the fiber application with every route registered.
func NewApp(c *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "trends-go",
		DisableStartupMessage: true,
		ErrorHandler:          c.handleError,
	})
	app.Use(recover.New())
	c.Register(app)
	return app
}

func (c *Controller) Register(app *fiber.App) {
	app.Get("/", c.root)
	app.Get("/healthz", c.health)

	tasks := app.Group("/tasks")
	tasks.Post("/run-daily-interest", c.trigger(task.KindDailyInterest))
	tasks.Post("/run-hourly-rising", c.trigger(task.KindHourlyRising))

	api := app.Group("/api")
	api.Get("/compare", c.compareTerms)
	api.Get("/runs", c.listRuns)
	api.Get("/runs/stuck", c.stuckRuns)
	api.Get("/runs/:id", c.getRun)
}

func (c *Controller) root(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"message": serviceMessage})
}

func (c *Controller) health(ctx *fiber.Ctx) error {
	resp := StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if c.monitor != nil {
		resp.Worker = c.monitor.Metrics()
	}
	return ctx.JSON(resp)
}

func (c *Controller) trigger(kind task.Kind) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var req task.Request
		if body := ctx.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
			}
		}

		acc, err := c.tasks.Trigger(ctx.UserContext(), kind, req)
		if err != nil {
			c.log.WithError(err).WithField("task", string(kind)).Error("Task trigger failed")
			if errors.Is(err, trends.ErrUpstreamUnavailable) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "trends source unavailable: "+err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return ctx.Status(fiber.StatusAccepted).JSON(acc)
	}
}

func (c *Controller) compareTerms(ctx *fiber.Ctx) error {
	result, err := c.compare.Compare(ctx.UserContext(), compare.Request{
		Terms:     ctx.Query("terms"),
		StartDate: ctx.Query("start_date"),
		EndDate:   ctx.Query("end_date"),
		Geo:       ctx.Query("geo"),
	})
	if err != nil {
		var verr *compare.ValidationError
		switch {
		case errors.As(err, &verr):
			return fiber.NewError(fiber.StatusBadRequest, verr.Error())
		case trends.IsRateLimited(err):
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests to the trends source, try again later")
		case errors.Is(err, trends.ErrUpstreamUnavailable):
			return fiber.NewError(fiber.StatusServiceUnavailable, "trends source unavailable: "+err.Error())
		}
		c.log.WithError(err).Error("Comparison failed")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(result)
}

func (c *Controller) listRuns(ctx *fiber.Ctx) error {
	runs, err := c.runs.ListRuns(ctx.UserContext(), runlog.Query{
		Task:   ctx.Query("task"),
		Status: runlog.Status(ctx.Query("status")),
		Limit:  ctx.QueryInt("limit", defaultRunLimit),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(runs)
}

func (c *Controller) stuckRuns(ctx *fiber.Ctx) error {
	olderThan := defaultStuckAge
	if raw := ctx.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "older_than must be a positive duration such as 3h")
		}
		olderThan = d
	}

	runs, err := c.runs.Stuck(ctx.UserContext(), olderThan)
	if err != nil {
		return err
	}
	return ctx.JSON(runs)
}

func (c *Controller) getRun(ctx *fiber.Ctx) error {
	run, err := c.runs.GetRun(ctx.UserContext(), ctx.Params("id"))
	if errors.Is(err, docstore.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return ctx.JSON(run)
}

// handleError renders every error as {"detail": ...}.
func (c *Controller) handleError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	} else {
		c.log.WithError(err).WithField("path", ctx.Path()).Error("Unhandled request error")
	}
	return ctx.Status(code).JSON(errorResponse{Detail: err.Error()})
}
