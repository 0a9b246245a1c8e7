package models

// WeatherRecord mirrors the subset of the OpenWeatherMap current weather
// payload the page renders.
type WeatherRecord struct {
	Main       MainReadings `json:"main"`
	Weather    []Condition  `json:"weather"`
	Wind       Wind         `json:"wind"`
	LastUpdate *LastUpdate  `json:"lastUpdate,omitempty"` // set only on records served from cache
}

type MainReadings struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
}

type Condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Wind struct {
	Speed float64 `json:"speed"`
}

// LastUpdate annotates a cached record with when it was fetched (epoch millis)
// and how old it was when read (millis).
type LastUpdate struct {
	Timestamp   int64 `json:"timestamp"`
	TimeElapsed int64 `json:"timeElapsed"`
}

// CacheEntry is the stored form of a cached record.
type CacheEntry struct {
	Data      WeatherRecord `json:"data"`
	Timestamp int64         `json:"timestamp"`
}
