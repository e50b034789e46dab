package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	app     *fiber.App
	mem     *store.MemoryStore
	svc     *weather.Service
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	mem := store.NewMemoryStore(clock)
	svc := weather.NewService(mem, weather.WithClock(clock))
	metrics := observability.NewMetricsForTesting()

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.Requests)

	app := NewApp(Options{Service: svc, Metrics: metrics, Gatherer: reg, Clock: clock})
	return &testServer{app: app, mem: mem, svc: svc, clock: clock, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (s *testServer) createCity(t *testing.T, name, country string) weather.City {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/v1/createCity",
		`{"name":"`+name+`","country":"`+country+`","latitude":10.5,"longitude":-20.25}`)
	require.Equal(t, http.StatusOK, code, string(body))

	var city weather.City
	require.NoError(t, json.Unmarshal(body, &city))
	return city
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.True(t, e.Error)
	return e.Message
}

func TestCreateCity(t *testing.T) {
	s := newTestServer(t)
	city := s.createCity(t, "Paris", "FR")
	assert.Equal(t, 10.5, city.Latitude)
	assert.Equal(t, now, city.CreatedAt)

	t.Run("duplicate is 409", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/v1/createCity",
			`{"name":"Paris","country":"FR","latitude":1,"longitude":1}`)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "city Paris, FR already exists", errorMessage(t, body))
	})

	t.Run("zero coordinates are accepted", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/v1/createCity",
			`{"name":"Null Island","country":"XX","latitude":0,"longitude":0}`)
		assert.Equal(t, http.StatusOK, code, string(body))
	})

	invalid := map[string]string{
		"missing latitude": `{"name":"A","country":"B","longitude":1}`,
		"latitude range":   `{"name":"A","country":"B","latitude":91,"longitude":1}`,
		"longitude range":  `{"name":"A","country":"B","latitude":1,"longitude":-181}`,
		"empty name":       `{"name":"","country":"B","latitude":1,"longitude":1}`,
		"malformed json":   `{"name":`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			code, resp := s.do(t, http.MethodPost, "/api/v1/createCity", body)
			assert.Equal(t, http.StatusBadRequest, code, string(resp))
		})
	}
}

func TestSearchAndListCities(t *testing.T) {
	s := newTestServer(t)
	s.createCity(t, "Santiago", "CL")
	s.createCity(t, "Berlin", "DE")
	s.createCity(t, "San Diego", "US")

	code, body := s.do(t, http.MethodGet, "/api/v1/searchCities?query=san", "")
	require.Equal(t, http.StatusOK, code)
	var found []weather.City
	require.NoError(t, json.Unmarshal(body, &found))
	require.Len(t, found, 2)
	assert.Equal(t, "San Diego", found[0].Name)
	assert.Equal(t, "Santiago", found[1].Name)

	code, _ = s.do(t, http.MethodGet, "/api/v1/searchCities?query=", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/getAllCities", "")
	require.Equal(t, http.StatusOK, code)
	var all []weather.City
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 3)
	assert.Equal(t, "Berlin", all[0].Name)

	code, body = s.do(t, http.MethodGet, "/api/v1/searchCities?query=zzz", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))
}

func TestWeatherEndpoints(t *testing.T) {
	s := newTestServer(t)
	city := s.createCity(t, "Oslo", "NO")

	code, body := s.do(t, http.MethodGet, "/api/v1/getWeatherByCity?city_id=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null", string(body))

	record := func(cityID, recordedAt string) string {
		return `{"city_id":` + cityID + `,"temperature":-4.5,"humidity":80,"pressure":1008.3,` +
			`"wind_speed":0,"wind_direction":360,"condition":"snow","visibility":2.5,"recorded_at":"` + recordedAt + `"}`
	}

	code, body = s.do(t, http.MethodPost, "/api/v1/createWeatherData", record("1", "2024-06-01T10:00:00Z"))
	require.Equal(t, http.StatusOK, code, string(body))
	code, _ = s.do(t, http.MethodPost, "/api/v1/createWeatherData", record("1", "2024-06-01T11:00:00Z"))
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/getWeatherByCity?city_id=1", "")
	require.Equal(t, http.StatusOK, code)
	var latest weather.WeatherRecord
	require.NoError(t, json.Unmarshal(body, &latest))
	assert.Equal(t, city.ID, latest.CityID)
	assert.Equal(t, -4.5, latest.Temperature)
	assert.Equal(t, 80, latest.Humidity)
	assert.Equal(t, weather.ConditionSnow, latest.Condition)
	assert.True(t, latest.RecordedAt.Equal(time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)))

	code, body = s.do(t, http.MethodGet, "/api/v1/getWeatherHistory?city_id=1", "")
	require.Equal(t, http.StatusOK, code)
	var history []weather.WeatherRecord
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 2)
	assert.True(t, history[0].RecordedAt.After(history[1].RecordedAt))

	t.Run("unknown city is 404 on write", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/v1/createWeatherData", record("77", "2024-06-01T10:00:00Z"))
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "city with id 77 not found", errorMessage(t, body))
	})

	t.Run("unknown city reads are empty", func(t *testing.T) {
		code, body := s.do(t, http.MethodGet, "/api/v1/getWeatherHistory?city_id=77", "")
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `[]`, string(body))
	})

	invalid := map[string]string{
		"humidity range":       `{"city_id":1,"temperature":1,"humidity":101,"pressure":1000,"wind_speed":1,"wind_direction":1,"condition":"clear","visibility":1,"recorded_at":"2024-06-01T10:00:00Z"}`,
		"pressure zero":        `{"city_id":1,"temperature":1,"humidity":1,"pressure":0,"wind_speed":1,"wind_direction":1,"condition":"clear","visibility":1,"recorded_at":"2024-06-01T10:00:00Z"}`,
		"direction range":      `{"city_id":1,"temperature":1,"humidity":1,"pressure":1000,"wind_speed":1,"wind_direction":361,"condition":"clear","visibility":1,"recorded_at":"2024-06-01T10:00:00Z"}`,
		"bad condition":        `{"city_id":1,"temperature":1,"humidity":1,"pressure":1000,"wind_speed":1,"wind_direction":1,"condition":"sunny","visibility":1,"recorded_at":"2024-06-01T10:00:00Z"}`,
		"missing time":         `{"city_id":1,"temperature":1,"humidity":1,"pressure":1000,"wind_speed":1,"wind_direction":1,"condition":"clear","visibility":1}`,
		"temperature overflow": `{"city_id":1,"temperature":1000,"humidity":1,"pressure":1000,"wind_speed":1,"wind_direction":1,"condition":"clear","visibility":1,"recorded_at":"2024-06-01T10:00:00Z"}`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			code, resp := s.do(t, http.MethodPost, "/api/v1/createWeatherData", body)
			assert.Equal(t, http.StatusBadRequest, code, string(resp))
		})
	}

	for _, target := range []string{
		"/api/v1/getWeatherByCity",
		"/api/v1/getWeatherByCity?city_id=0",
		"/api/v1/getWeatherByCity?city_id=abc",
	} {
		code, _ := s.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, code, target)
	}
}

func TestAlertEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.createCity(t, "Reykjavik", "IS")

	code, body := s.do(t, http.MethodPost, "/api/v1/createWeatherAlert",
		`{"city_id":1,"type":"strong_winds","severity":"high","title":"Gale","description":"Gale force winds",`+
			`"start_time":"2024-06-01T11:00:00Z","end_time":"2024-06-01T13:00:00Z","is_active":false}`)
	require.Equal(t, http.StatusOK, code, string(body))
	var created weather.Alert
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.IsActive, "new alerts are always active")

	code, body = s.do(t, http.MethodPost, "/api/v1/createWeatherAlert",
		`{"city_id":1,"type":"fog","severity":"low","title":"Fog","description":"Dense fog",`+
			`"start_time":"2024-06-01T11:30:00Z","end_time":null}`)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), `"end_time":null`)

	code, body = s.do(t, http.MethodGet, "/api/v1/getActiveAlerts?city_id=1", "")
	require.Equal(t, http.StatusOK, code)
	var active []weather.Alert
	require.NoError(t, json.Unmarshal(body, &active))
	assert.Len(t, active, 2)

	s.clock.Advance(time.Hour) // 13:00, the gale alert's end
	code, body = s.do(t, http.MethodGet, "/api/v1/getActiveAlerts?city_id=1", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &active))
	require.Len(t, active, 1)
	assert.Equal(t, weather.AlertFog, active[0].Type)

	code, body = s.do(t, http.MethodGet, "/api/v1/getActiveAlerts?city_id=99", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))

	t.Run("start equal to end is 400", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/v1/createWeatherAlert",
			`{"city_id":1,"type":"fog","severity":"low","title":"x","description":"y",`+
				`"start_time":"2024-06-01T11:00:00Z","end_time":"2024-06-01T11:00:00Z"}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, errorMessage(t, body), "start time must be before end time")
	})

	t.Run("unknown city is 404", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/v1/createWeatherAlert",
			`{"city_id":5,"type":"fog","severity":"low","title":"x","description":"y","start_time":"2024-06-01T11:00:00Z"}`)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("bad enums are 400", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/v1/createWeatherAlert",
			`{"city_id":1,"type":"tornado","severity":"apocalyptic","title":"x","description":"y","start_time":"2024-06-01T11:00:00Z"}`)
		assert.Equal(t, http.StatusBadRequest, code)
		msg := errorMessage(t, body)
		assert.Contains(t, msg, "type")
		assert.Contains(t, msg, "severity")
	})
}

func TestWeatherMaps(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, in := range []weather.CreateMapInput{
		{Region: "North America", MapType: weather.MapTemperature, DataURL: "https://maps.example/na/t-old", Timestamp: now.Add(-time.Hour)},
		{Region: "North America", MapType: weather.MapTemperature, DataURL: "https://maps.example/na/t-new", Timestamp: now},
		{Region: "Europe", MapType: weather.MapWind, DataURL: "https://maps.example/eu/w", Timestamp: now},
	} {
		_, err := s.svc.CreateMapEntry(ctx, in)
		require.NoError(t, err)
	}

	code, body := s.do(t, http.MethodGet, "/api/v1/getWeatherMaps?region=North%20America", "")
	require.Equal(t, http.StatusOK, code)
	var entries []weather.MapEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "https://maps.example/na/t-new", entries[0].DataURL)

	code, body = s.do(t, http.MethodGet, "/api/v1/getWeatherMaps?map_type=wind", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)

	code, body = s.do(t, http.MethodGet, "/api/v1/getWeatherMaps", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &entries))
	assert.Len(t, entries, 3)

	code, _ = s.do(t, http.MethodGet, "/api/v1/getWeatherMaps?map_type=radar", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAmbientEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/healthcheck", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2024-06-01T12:00:00Z"}`, string(body))

	code, _ = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ready"}`, string(body))

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.Requests.WithLabelValues("/api/v1/healthcheck", "200")))

	code, body = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "weather_api_requests_total")

	code, body = s.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	errorMessage(t, body)
}
