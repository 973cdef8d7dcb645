package tool

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"toolbridge/internal/config"
	"toolbridge/internal/domain"
)

const defaultWeatherAPIBase = "https://api.openweathermap.org"

// WeatherConfig wires the weather tool. Client is optional and defaults to
// the shared pooled client.
type WeatherConfig struct {
	APIKey  config.Credential
	APIBase string
	Client  *http.Client
}

func (c WeatherConfig) withDefaults() WeatherConfig {
	if c.APIBase == "" {
		c.APIBase = defaultWeatherAPIBase
	}
	if c.Client == nil {
		c.Client = SharedHTTPClient(0)
	}
	return c
}

type owmResponse struct {
	Name    string       `json:"name"`
	Sys     owmSys       `json:"sys"`
	Main    owmMain      `json:"main"`
	Weather []owmWeather `json:"weather"`
	Wind    owmWind      `json:"wind"`
}

type owmSys struct {
	Country string `json:"country"`
}

type owmMain struct {
	Temp     float64 `json:"temp"`
	Humidity int     `json:"humidity"`
}

type owmWeather struct {
	Description string `json:"description"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
}

// weatherReading is the normalized payload returned to clients.
type weatherReading struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// --- WeatherTool ---

// WeatherTool looks up current weather through the OpenWeatherMap API and
// normalizes the response to a compact reading in metric units.
type WeatherTool struct {
	apiKey  config.Credential
	apiBase string
	client  *http.Client
}

func NewWeatherTool(cfg WeatherConfig) *WeatherTool {
	cfg = cfg.withDefaults()
	return &WeatherTool{apiKey: cfg.APIKey, apiBase: cfg.APIBase, client: cfg.Client}
}

func (t *WeatherTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "get_weather",
		Description: "Get the current weather for a city in metric units.",
		Effect:      domain.EffectNetwork,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"city":         {Type: "string", Description: "City name"},
				"country_code": {Type: "string", Description: "ISO country code (default: US)"},
			},
			Required: []string{"city"},
		},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	key, ok := t.apiKey.Value()
	if !ok {
		return "", domain.Errf(domain.ErrMissingCredential, "OpenWeather API key not configured (set %s)", config.EnvWeatherKey)
	}

	city := ArgsString(args, "city")
	countryCode := ArgsStringDefault(args, "country_code", "US")

	query := url.Values{}
	query.Set("q", city+","+countryCode)
	query.Set("appid", key)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, "GET", t.apiBase+"/data/2.5/weather?"+query.Encode(), nil)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "build weather request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "weather request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &domain.ToolError{
			Kind:    domain.ErrNotFound,
			Status:  resp.StatusCode,
			Message: "city " + city + " not found",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", upstreamFailure("weather", resp.StatusCode, respBody)
	}

	var owm owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&owm); err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "decode weather response")
	}

	reading := weatherReading{
		City:        owm.Name,
		Country:     owm.Sys.Country,
		Temperature: owm.Main.Temp,
		Humidity:    owm.Main.Humidity,
		WindSpeed:   owm.Wind.Speed,
	}
	if len(owm.Weather) > 0 {
		reading.Description = owm.Weather[0].Description
	}
	out, err := json.Marshal(reading)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "encode weather reading")
	}
	return string(out), nil
}

var _ domain.Tool = (*WeatherTool)(nil)
