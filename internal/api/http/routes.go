package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nmoran/wc-server/internal/decision"
	"github.com/nmoran/wc-server/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the device-facing and operator-facing handlers into
// the Fiber app.
func RegisterRoutes(app *fiber.App, st store.Store, engine *decision.Engine) {
	weather := app.Group("/weather")

	weather.Get("/", listSamples(st))
	weather.Get("/get-settings", getEffectiveSettings(st, engine))
	weather.Get("/arduino-settings", getSettings(st))
	weather.Post("/arduino-settings", updateSettings(st))
	weather.Get("/arduino-log", listLogEntries(st))
	weather.Post("/log-data", ingestLogData(st))
}

// listSamples returns forecast samples from the last hour.
func listSamples(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		samples, err := st.RecentSamples(c.Context(), time.Now().Add(-time.Hour))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(samples)
	}
}

// getEffectiveSettings is the device poll endpoint: the settings row plus
// the server clock and the watering decision. Hour/minute/second come from
// the settings only when override_time is set; the date is always the
// server's.
func getEffectiveSettings(st store.Store, engine *decision.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		settings, err := st.Settings(c.Context())
		if err != nil {
			if errors.Is(err, store.ErrNoSettings) {
				return fiber.NewError(fiber.StatusNotFound, "device settings not configured")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch settings")
		}

		runWater, err := engine.RunWater(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute watering decision")
		}

		now := time.Now()
		hour, minute, second := settings.Hour, settings.Minute, settings.Second
		if !settings.OverrideTime {
			hour, minute, second = now.Hour(), now.Minute(), now.Second()
		}

		runTimes := settings.RunTimes
		if runTimes == nil {
			runTimes = []int{}
		}

		return c.JSON(fiber.Map{
			"water_enabled": settings.WaterEnabled,
			"hour":          hour,
			"minute":        minute,
			"second":        second,
			"min_soil":      settings.MinSoil,
			"run_duration":  settings.RunDuration,
			"run_times":     runTimes,
			"year":          now.Year() % 100,
			"month":         int(now.Month()),
			"day":           now.Day(),
			"run_water":     runWater,
		})
	}
}

func getSettings(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		settings, err := st.Settings(c.Context())
		if err != nil {
			if errors.Is(err, store.ErrNoSettings) {
				return fiber.NewError(fiber.StatusNotFound, "device settings not configured")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch settings")
		}
		return c.JSON(settings)
	}
}

// settingsRequest mirrors the operator settings form. Pointer fields
// distinguish an omitted value from a legitimate zero.
type settingsRequest struct {
	OverrideTime      bool     `json:"override_time"`
	WaterEnabled      bool     `json:"water_enabled"`
	Hour              *int     `json:"hour" validate:"required,min=0,max=23"`
	Minute            *int     `json:"minute" validate:"required,min=0,max=59"`
	Second            *int     `json:"second" validate:"required,min=0,max=59"`
	MinSoil           *int     `json:"min_soil" validate:"required,min=0"`
	RunDuration       *int     `json:"run_duration" validate:"required,min=0"`
	RunTimes          []int    `json:"run_times" validate:"required"`
	MaxChance         *float64 `json:"max_chance" validate:"required"`
	TotalAccumulation *float64 `json:"total_accumulation" validate:"required"`
}

func updateSettings(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req settingsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		settings := store.Settings{
			OverrideTime:      req.OverrideTime,
			WaterEnabled:      req.WaterEnabled,
			Hour:              *req.Hour,
			Minute:            *req.Minute,
			Second:            *req.Second,
			MinSoil:           *req.MinSoil,
			RunDuration:       *req.RunDuration,
			RunTimes:          req.RunTimes,
			MaxChance:         *req.MaxChance,
			TotalAccumulation: *req.TotalAccumulation,
		}
		if err := st.UpdateSettings(c.Context(), settings); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to update settings")
		}
		return c.JSON(settings)
	}
}

func listLogEntries(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive number")
			}
			limit = n
		}

		entries, err := st.RecentLogEntries(c.Context(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch log entries")
		}
		return c.JSON(entries)
	}
}

// ingestLogData accepts the device check-in payload: base64-wrapped JSON
// readings, NUL-padded by the device's fixed-size buffer.
func ingestLogData(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data := c.FormValue("data")
		if data == "" {
			data = string(c.Body())
		}

		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid base64 payload")
		}

		payload := string(raw)
		if i := strings.IndexByte(payload, 0); i >= 0 {
			payload = payload[:i]
		}

		var readings map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &readings); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid readings payload")
		}

		now := time.Now()
		for reading, value := range readings {
			entry := store.LogEntry{
				Timestamp: now,
				Reading:   reading,
				Value:     fmt.Sprint(value),
			}
			if err := st.AppendLogEntry(c.Context(), entry); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to store log entry")
			}
		}
		return c.SendString("")
	}
}
