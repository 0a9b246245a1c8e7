// Package controller wires page events to the cache, the weather client and
// the display formatter.
package controller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/display"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/storage"
	"github.com/kjstillabower/weather-lookup/internal/validation"
)

// LastCityKey is the storage key holding the last submitted city.
const LastCityKey = "lastCity"

// Page is the set of element handles a lookup reads and writes.
type Page interface {
	CityInput() string
	SetCityInput(city string)
	SelectedUnit() display.Unit
	ShowLoader()
	HideLoader()
	HideWeather()
	ShowWeather(view display.View)
	// ShowError replaces the weather panel's content with message and shows it.
	ShowError(message string)
}

// Handler reacts to one page event.
type Handler func(ctx context.Context, page Page)

// EventSource delivers page events to registered handlers.
type EventSource interface {
	OnSubmit(h Handler)
	OnLoad(h Handler)
	OnUnitChange(h Handler)
}

// Outcome is how a lookup ended.
type Outcome string

const (
	OutcomeCached   Outcome = "cached"
	OutcomeFetched  Outcome = "fetched"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailure  Outcome = "failure"
)

// Controller runs lookups. It holds no per-page state, so one Controller
// serves any number of pages concurrently.
type Controller struct {
	cache      cache.Cache
	client     client.WeatherClient
	store      storage.Store
	logger     *zap.Logger
	maxCityLen int
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxCityLength rejects cities longer than n runes on submit and unit
// change alike. 0, the default, disables the bound.
func WithMaxCityLength(n int) Option {
	return func(c *Controller) { c.maxCityLen = n }
}

// New creates a Controller. store holds the last submitted city; logger may be nil.
func New(weatherCache cache.Cache, weatherClient client.WeatherClient, store storage.Store, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cache:  weatherCache,
		client: weatherClient,
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind registers the controller's handlers with src.
func (c *Controller) Bind(src EventSource) {
	src.OnSubmit(c.HandleSubmit)
	src.OnLoad(c.HandleLoad)
	src.OnUnitChange(c.HandleUnitChange)
}

// HandleSubmit trims the city input; when non-empty it is remembered as the
// last city and looked up.
func (c *Controller) HandleSubmit(ctx context.Context, page Page) {
	city, ok := c.acceptCity(ctx, page)
	if !ok {
		return
	}
	if err := c.store.SetItem(ctx, LastCityKey, city); err != nil {
		observability.LoggerFromContext(ctx, c.logger).Warn("persist last city failed", zap.Error(err))
	}
	c.Lookup(ctx, page, city)
}

// HandleQuery looks up the city input like HandleSubmit but leaves the last
// city untouched. Used by read-only callers such as the JSON API.
func (c *Controller) HandleQuery(ctx context.Context, page Page) {
	city, ok := c.acceptCity(ctx, page)
	if !ok {
		return
	}
	c.Lookup(ctx, page, city)
}

// HandleLoad restores the last city, if any, into the input and looks it up.
func (c *Controller) HandleLoad(ctx context.Context, page Page) {
	logger := observability.LoggerFromContext(ctx, c.logger)
	city, ok, err := c.store.GetItem(ctx, LastCityKey)
	if err != nil {
		logger.Warn("read last city failed", zap.Error(err))
		return
	}
	if !ok || city == "" {
		return
	}
	page.SetCityInput(city)
	c.Lookup(ctx, page, city)
}

// HandleUnitChange repeats the whole lookup for the current input, going
// through the cache again rather than re-rendering the last result.
func (c *Controller) HandleUnitChange(ctx context.Context, page Page) {
	city, ok := c.acceptCity(ctx, page)
	if !ok {
		return
	}
	c.Lookup(ctx, page, city)
}

// acceptCity trims the input. Empty input is ignored without touching the
// page; a city over the configured bound is shown as not found.
func (c *Controller) acceptCity(ctx context.Context, page Page) (string, bool) {
	city, err := validation.ValidateCity(page.CityInput(), c.maxCityLen)
	if errors.Is(err, validation.ErrCityEmpty) {
		return "", false
	}
	if err != nil {
		observability.LoggerFromContext(ctx, c.logger).Debug("city rejected", zap.Error(err))
		page.HideWeather()
		page.ShowError(display.MsgCityNotFound)
		return "", false
	}
	return city, true
}

// Lookup resolves city from the cache or the API and renders it on page.
// The loader is hidden on every return path. Overlapping lookups on the same
// page are not cancelled; whichever finishes last owns the page.
func (c *Controller) Lookup(ctx context.Context, page Page, city string) Outcome {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, c.logger).With(zap.String("city", city))

	page.ShowLoader()
	page.HideWeather()
	defer page.HideLoader()

	outcome := c.resolve(ctx, logger, page, city)
	observability.RecordLookup(city, string(outcome), time.Since(start).Seconds())
	logger.Debug("lookup finished", zap.String("outcome", string(outcome)), zap.Duration("duration", time.Since(start)))
	return outcome
}

func (c *Controller) resolve(ctx context.Context, logger *zap.Logger, page Page, city string) Outcome {
	cached, ok, err := c.cache.Get(ctx, city)
	if err != nil {
		logger.Warn("cache read failed", zap.Error(err))
		page.ShowError(display.MsgGenericFailure)
		return OutcomeFailure
	}
	if ok {
		logger.Debug("cache hit")
		return c.render(logger, page, cached, OutcomeCached)
	}

	data, err := c.client.Fetch(ctx, city)
	if err != nil {
		if errors.Is(err, client.ErrCityNotFound) {
			logger.Debug("city not found upstream", zap.Error(err))
			page.ShowError(display.MsgCityNotFound)
			return OutcomeNotFound
		}
		logger.Warn("weather fetch failed", zap.Error(err))
		page.ShowError(display.MsgGenericFailure)
		return OutcomeFailure
	}

	if err := c.cache.Set(ctx, city, data); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}
	return c.render(logger, page, data, OutcomeFetched)
}

func (c *Controller) render(logger *zap.Logger, page Page, data models.WeatherRecord, outcome Outcome) Outcome {
	view, err := display.Render(data, page.SelectedUnit())
	if err != nil {
		logger.Warn("render failed", zap.Error(err))
		page.ShowError(display.MsgGenericFailure)
		return OutcomeFailure
	}
	page.ShowWeather(view)
	return outcome
}
