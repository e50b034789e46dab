package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// It enforces the same unique and foreign-key constraints as the Postgres schema.
type MemoryStore struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	cities   []weather.CityRow
	cityKeys map[string]int64 // name\x00country -> id
	records  []weather.WeatherRow
	alerts   []weather.Alert
	maps     []weather.MapEntry

	nextCityID    int64
	nextWeatherID int64
	nextAlertID   int64
	nextMapID     int64
}

// NewMemoryStore creates an empty MemoryStore. CreatedAt values come from
// clock; a nil clock uses real time.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:    clock,
		cityKeys: make(map[string]int64),
	}
}

func (s *MemoryStore) InsertCity(_ context.Context, row weather.CityRow) (weather.CityRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := common.CompositeKey(row.Name, row.Country)
	if _, exists := s.cityKeys[key]; exists {
		return weather.CityRow{}, weather.Conflict("city %s, %s already exists", row.Name, row.Country)
	}

	s.nextCityID++
	row.ID = s.nextCityID
	row.CreatedAt = s.now()
	s.cities = append(s.cities, row)
	s.cityKeys[key] = row.ID
	return row, nil
}

func (s *MemoryStore) FindCity(_ context.Context, name, country string) (*weather.CityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.cityKeys[common.CompositeKey(name, country)]
	if !ok {
		return nil, nil
	}
	row := s.cities[s.cityIndex(id)]
	return &row, nil
}

func (s *MemoryStore) CityExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cityIndex(id) >= 0, nil
}

func (s *MemoryStore) ListCities(ctx context.Context) ([]weather.CityRow, error) {
	return s.SearchCities(ctx, "")
}

func (s *MemoryStore) SearchCities(_ context.Context, query string) ([]weather.CityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.CityRow, 0, len(s.cities))
	for _, c := range s.cities {
		if common.ContainsFold(c.Name, query) {
			result = append(result, c)
		}
	}
	// Rows are held in id order, so a stable sort breaks name ties by id.
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStore) InsertWeather(_ context.Context, row weather.WeatherRow) (weather.WeatherRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cityIndex(row.CityID) < 0 {
		return weather.WeatherRow{}, weather.NotFound("city with id %d not found", row.CityID)
	}

	s.nextWeatherID++
	row.ID = s.nextWeatherID
	row.CreatedAt = s.now()
	s.records = append(s.records, row)
	return row, nil
}

func (s *MemoryStore) LatestWeather(ctx context.Context, cityID int64) (*weather.WeatherRow, error) {
	history, err := s.WeatherHistory(ctx, cityID)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return &history[0], nil
}

func (s *MemoryStore) WeatherHistory(_ context.Context, cityID int64) ([]weather.WeatherRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.WeatherRow, 0)
	for _, w := range s.records {
		if w.CityID == cityID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RecordedAt.Equal(result[j].RecordedAt) {
			return result[i].RecordedAt.After(result[j].RecordedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// InsertAlert stores alert as given, including its IsActive flag.
func (s *MemoryStore) InsertAlert(_ context.Context, alert weather.Alert) (weather.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cityIndex(alert.CityID) < 0 {
		return weather.Alert{}, weather.NotFound("city with id %d not found", alert.CityID)
	}

	s.nextAlertID++
	alert.ID = s.nextAlertID
	alert.CreatedAt = s.now()
	if alert.EndTime != nil {
		end := *alert.EndTime
		alert.EndTime = &end
	}
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

func (s *MemoryStore) ActiveAlerts(_ context.Context, cityID int64, now time.Time) ([]weather.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return weather.ActiveFor(s.alerts, cityID, now), nil
}

func (s *MemoryStore) CountActiveAlerts(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.alerts {
		if a.ActiveAt(now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InsertMapEntry(_ context.Context, entry weather.MapEntry) (weather.MapEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMapID++
	entry.ID = s.nextMapID
	entry.CreatedAt = s.now()
	s.maps = append(s.maps, entry)
	return entry, nil
}

func (s *MemoryStore) ListMaps(_ context.Context, filter weather.MapFilter) ([]weather.MapEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.MapEntry, 0, len(s.maps))
	for _, m := range s.maps {
		if filter.Region != "" && m.Region != filter.Region {
			continue
		}
		if filter.MapType != "" && m.MapType != filter.MapType {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// cityIndex returns the slice index of city id, or -1. Callers hold mu.
func (s *MemoryStore) cityIndex(id int64) int {
	i := sort.Search(len(s.cities), func(i int) bool { return s.cities[i].ID >= id })
	if i < len(s.cities) && s.cities[i].ID == id {
		return i
	}
	return -1
}

func (s *MemoryStore) now() time.Time {
	return s.clock.Now().UTC()
}
