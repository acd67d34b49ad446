package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-env-sync/internal/daytime"
	"github.com/i474232898/weather-env-sync/internal/environment"
	"github.com/i474232898/weather-env-sync/internal/scheduler"
	"github.com/i474232898/weather-env-sync/internal/store"
	"github.com/i474232898/weather-env-sync/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("envid", func(fl validator.FieldLevel) bool {
		return environment.ID(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("register envid validation: %v", err))
	}
	return v
}

// Environment is the scene-side API used by the handlers.
type Environment interface {
	Apply(target environment.TargetState) environment.Result
	Override(id environment.ID)
	ClearOverride(id environment.ID)
	ClearOverrides()
	Overrides() []environment.ID
	Snapshot() environment.Snapshot
	LastTarget() (environment.TargetState, time.Time, bool)
}

// Syncer is the sync loop as seen by the handlers.
type Syncer interface {
	Trigger(force bool) bool
	InFlight() bool
	Schedule() daytime.Schedule
	LastReport() (scheduler.Report, bool)
}

// Observations is read access to the cached weather.
type Observations interface {
	Latest() (weather.Observation, error)
	History(from, to time.Time) ([]weather.Observation, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, env Environment, loop Syncer, observations Observations) {
	v1 := app.Group("/api/v1")

	v1.Get("/environment", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"snapshot":  env.Snapshot(),
			"overrides": env.Overrides(),
			"schedule":  loop.Schedule().String(),
			"syncing":   loop.InFlight(),
		}
		if target, at, ok := env.LastTarget(); ok {
			resp["lastTarget"] = fiber.Map{"target": target, "appliedAt": at}
		}
		if report, ok := loop.LastReport(); ok {
			resp["lastTick"] = newTickResponse(report)
		}
		return c.JSON(resp)
	})

	v1.Post("/environment/sync", func(c *fiber.Ctx) error {
		force := c.QueryBool("force", false)
		if !loop.Trigger(force) {
			return fiber.NewError(fiber.StatusConflict, "a sync is already in flight")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": true, "force": force})
	})

	v1.Post("/environment/apply", func(c *fiber.Ctx) error {
		var req applyRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res := env.Apply(req.toTarget())
		for _, err := range res.Errors {
			if errors.Is(err, environment.ErrInvalidTarget) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return c.JSON(newApplyResponse(res))
	})

	v1.Get("/environment/overrides", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"overrides": env.Overrides()})
	})

	v1.Post("/environment/overrides", func(c *fiber.Ctx) error {
		var req overrideRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		env.Override(environment.ID(req.Env))
		return c.JSON(fiber.Map{"overrides": env.Overrides()})
	})

	v1.Delete("/environment/overrides", func(c *fiber.Ctx) error {
		env.ClearOverrides()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Delete("/environment/overrides/:env", func(c *fiber.Ctx) error {
		req := overrideRequest{Env: c.Params("env")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		env.ClearOverride(environment.ID(req.Env))
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		obs, err := observations.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data fetched yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather data")
		}
		return c.JSON(obs)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observed, err := observations.History(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather history")
		}

		return c.JSON(fiber.Map{
			"from":         req.From,
			"to":           req.To,
			"observations": observed,
		})
	})
}

type overrideRequest struct {
	Env string `json:"env" validate:"required,envid"`
}

// applyRequest is a manually chosen target.
type applyRequest struct {
	BaseTime      string          `json:"baseTime" validate:"required,envid"`
	Precipitation string          `json:"precipitation" validate:"omitempty,envid"`
	Effects       map[string]bool `json:"effects" validate:"omitempty,dive,keys,envid,endkeys"`
}

func (r applyRequest) toTarget() environment.TargetState {
	target := environment.TargetState{
		BaseTime:      environment.ID(r.BaseTime),
		Precipitation: environment.ID(r.Precipitation),
	}
	if len(r.Effects) > 0 {
		target.Effects = make(map[environment.ID]bool, len(r.Effects))
		for id, on := range r.Effects {
			target.Effects[environment.ID(id)] = on
		}
	}
	return target
}

type commandResponse struct {
	Op    environment.Op `json:"op"`
	Env   environment.ID `json:"env"`
	Error string         `json:"error,omitempty"`
}

func newCommands(cmds []environment.Command) []commandResponse {
	out := make([]commandResponse, 0, len(cmds))
	for _, cmd := range cmds {
		cr := commandResponse{Op: cmd.Op, Env: cmd.Env}
		if cmd.Err != nil {
			cr.Error = cmd.Err.Error()
		}
		out = append(out, cr)
	}
	return out
}

type applyResponse struct {
	Target   environment.TargetState `json:"target"`
	Commands []commandResponse       `json:"commands"`
	Skipped  []string                `json:"skipped,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func newApplyResponse(res environment.Result) applyResponse {
	resp := applyResponse{
		Target:   res.Target,
		Commands: newCommands(res.Commands),
		Skipped:  res.Skipped,
	}
	for _, err := range res.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

type tickResponse struct {
	scheduler.Report
	Commands []commandResponse `json:"commands"`
}

func newTickResponse(r scheduler.Report) tickResponse {
	return tickResponse{Report: r, Commands: newCommands(r.Commands)}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
