// Package display turns a weather record into the text and icon shown on the page.
package display

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// Fixed user-facing messages. These are the only two error states a page shows.
const (
	MsgCityNotFound   = "City not found"
	MsgGenericFailure = "Something went wrong!"
)

const iconURLPattern = "https://openweathermap.org/img/wn/%s@2x.png"

// ErrNoConditions is returned when the record has an empty weather list.
var ErrNoConditions = errors.New("weather record has no conditions")

// Unit is the temperature unit selected on the page.
type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

// ParseUnit maps form input to a Unit. Anything but "fahrenheit" is Celsius.
func ParseUnit(s string) Unit {
	if strings.EqualFold(strings.TrimSpace(s), string(Fahrenheit)) {
		return Fahrenheit
	}
	return Celsius
}

// Symbol returns "C" or "F".
func (u Unit) Symbol() string {
	if u == Fahrenheit {
		return "F"
	}
	return "C"
}

// View is a rendered weather panel.
type View struct {
	IconURL     string             `json:"iconUrl"`
	Temperature string             `json:"temperature"`
	Description string             `json:"description"`
	Humidity    string             `json:"humidity"`
	WindSpeed   string             `json:"windSpeed"`
	LastUpdate  *models.LastUpdate `json:"lastUpdate,omitempty"`
}

// Render formats data for unit. Temperatures arrive in Celsius.
func Render(data models.WeatherRecord, unit Unit) (View, error) {
	if len(data.Weather) == 0 {
		return View{}, ErrNoConditions
	}
	cond := data.Weather[0]
	return View{
		IconURL:     fmt.Sprintf(iconURLPattern, cond.Icon),
		Temperature: FormatTemperature(data.Main.Temp, unit),
		Description: cond.Description,
		Humidity:    formatNumber(data.Main.Humidity) + "%",
		WindSpeed:   formatNumber(data.Wind.Speed) + " m/s",
		LastUpdate:  data.LastUpdate,
	}, nil
}

// FormatTemperature converts celsius to unit and rounds to the nearest
// integer, halves rounding up: 20 -> "20°C" or "68°F".
func FormatTemperature(celsius float64, unit Unit) string {
	temp := celsius
	if unit == Fahrenheit {
		temp = celsius*9/5 + 32
	}
	return fmt.Sprintf("%d°%s", int64(roundHalfUp(temp)), unit.Symbol())
}

// roundHalfUp rounds x.5 towards +Inf, so -2.5 becomes -2 (math.Round gives -3).
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// formatNumber prints the shortest representation: 65 -> "65", 3.2 -> "3.2".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
