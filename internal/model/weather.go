package model

import "strings"

// WeatherPayload mirrors the WeatherAPI.com current.json response.
type WeatherPayload struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
}

type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	TzID      string  `json:"tz_id"`
	Localtime string  `json:"localtime"`
}

type Current struct {
	LastUpdated string    `json:"last_updated"`
	TempC       float64   `json:"temp_c"`
	FeelsLikeC  float64   `json:"feelslike_c"`
	IsDay       int       `json:"is_day"`
	Condition   Condition `json:"condition"`
	WindKph     float64   `json:"wind_kph"`
	WindDir     string    `json:"wind_dir"`
	PressureMb  float64   `json:"pressure_mb"`
	PrecipMm    float64   `json:"precip_mm"`
	Humidity    int       `json:"humidity"`
	Cloud       int       `json:"cloud"`
	VisKm       float64   `json:"vis_km"`
	DewpointC   float64   `json:"dewpoint_c"`
	UV          float64   `json:"uv"`
	GustKph     float64   `json:"gust_kph"`
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

// IconURL returns the condition icon as an absolute https URL.
// The API sends icons protocol-relative, e.g. //cdn.weatherapi.com/weather/64x64/day/113.png.
func (p WeatherPayload) IconURL() string {
	icon := p.Current.Condition.Icon
	switch {
	case icon == "":
		return ""
	case strings.HasPrefix(icon, "//"):
		return "https:" + icon
	case strings.Contains(icon, "://"):
		return icon
	default:
		return "https://" + strings.TrimPrefix(icon, "/")
	}
}
