package controller

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-lookup/internal/display"
)

// PageState is an in-memory Page. Adapters fill the inputs from a request,
// fire an event, then render from Snapshot.
type PageState struct {
	mu           sync.Mutex
	input        string
	unit         display.Unit
	loading      bool
	panelVisible bool
	view         *display.View
	errMessage   string
}

var _ Page = (*PageState)(nil)

// Snapshot is a point-in-time copy of a PageState.
type Snapshot struct {
	City         string        `json:"city"`
	Unit         display.Unit  `json:"unit"`
	Loading      bool          `json:"-"`
	PanelVisible bool          `json:"-"`
	Weather      *display.View `json:"weather,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// NewPageState creates a page with the given city input and unit selection.
func NewPageState(city string, unit display.Unit) *PageState {
	return &PageState{input: city, unit: unit}
}

func (p *PageState) CityInput() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

func (p *PageState) SetCityInput(city string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = city
}

func (p *PageState) SelectedUnit() display.Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unit
}

// SetUnit changes the selected unit, as toggling the radio group would.
func (p *PageState) SetUnit(unit display.Unit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unit = unit
}

func (p *PageState) ShowLoader() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = true
}

func (p *PageState) HideLoader() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
}

func (p *PageState) HideWeather() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panelVisible = false
}

func (p *PageState) ShowWeather(view display.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = &view
	p.errMessage = ""
	p.panelVisible = true
}

func (p *PageState) ShowError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = nil
	p.errMessage = message
	p.panelVisible = true
}

// Snapshot returns the current page state. Weather and Error are only set
// while the panel is visible.
func (p *PageState) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		City:         p.input,
		Unit:         p.unit,
		Loading:      p.loading,
		PanelVisible: p.panelVisible,
	}
	if p.panelVisible {
		if p.view != nil {
			v := *p.view
			s.Weather = &v
		}
		s.Error = p.errMessage
	}
	return s
}

var _ EventSource = (*Dispatcher)(nil)

// Dispatcher is an EventSource fired explicitly by adapters.
type Dispatcher struct {
	mu         sync.RWMutex
	submit     []Handler
	load       []Handler
	unitChange []Handler
}

// NewDispatcher creates a Dispatcher with no handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) OnSubmit(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submit = append(d.submit, h)
}

func (d *Dispatcher) OnLoad(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.load = append(d.load, h)
}

func (d *Dispatcher) OnUnitChange(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unitChange = append(d.unitChange, h)
}

// Submit fires the submit handlers synchronously.
func (d *Dispatcher) Submit(ctx context.Context, page Page) { d.fire(ctx, page, &d.submit) }

// Load fires the page-load handlers synchronously.
func (d *Dispatcher) Load(ctx context.Context, page Page) { d.fire(ctx, page, &d.load) }

// UnitChange fires the unit-change handlers synchronously.
func (d *Dispatcher) UnitChange(ctx context.Context, page Page) { d.fire(ctx, page, &d.unitChange) }

func (d *Dispatcher) fire(ctx context.Context, page Page, handlers *[]Handler) {
	d.mu.RLock()
	hs := append([]Handler(nil), (*handlers)...)
	d.mu.RUnlock()
	for _, h := range hs {
		h(ctx, page)
	}
}
