package repository

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/monitoring"
)

// ErrStationNotFound 站点不存在
var ErrStationNotFound = errors.New("station not found")

// StationStore 站点存储
type StationStore interface {
	List() []*models.Station
	Get(id string) (*models.Station, error)
	Update(id string, fn func(st *models.Station) error) (*models.Station, error)
}

// MemoryStationStore 进程内站点存储，站点名单固定
type MemoryStationStore struct {
	mu       sync.RWMutex
	stations map[string]*models.Station
}

// NewMemoryStationStore 创建站点存储
func NewMemoryStationStore(stations []*models.Station) *MemoryStationStore {
	s := &MemoryStationStore{stations: make(map[string]*models.Station, len(stations))}
	for _, st := range stations {
		if st.Status == "" {
			st.Status = models.StatusNormal
		}
		s.stations[st.ID] = st
	}
	return s
}

// List 返回所有站点副本，按 ID 排序
func (s *MemoryStationStore) List() []*models.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get 获取站点副本
func (s *MemoryStationStore) Get(id string) (*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	return st.Clone(), nil
}

// Update 在写锁内修改站点，返回修改后的副本
// fn 返回错误时修改仍然保留，调用方负责保证 fn 的原子性
func (s *MemoryStationStore) Update(id string, fn func(st *models.Station) error) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// DefaultStations 初始站点名单
func DefaultStations() []*models.Station {
	cities := []struct {
		name     string
		lat, lng float64
	}{
		{"NYC", 40.7128, -74.0060},
		{"LA", 34.0522, -118.2437},
		{"Chicago", 41.8781, -87.6298},
		{"Boston", 42.3601, -71.0589},
		{"Seattle", 47.6062, -122.3321},
	}

	now := time.Now()
	stations := make([]*models.Station, 0, len(cities))
	for i, c := range cities {
		// 启动时即有基线指标，站点无需先刷新就能作为改道候选
		metrics := monitoring.EmptyWindowMetrics(now)
		stations = append(stations, &models.Station{
			ID:          fmt.Sprintf("station-%d", i),
			Name:        c.name + " Central Hub",
			City:        c.name,
			Location:    c.name + ", USA",
			Coordinates: &models.Coordinates{Lat: c.lat, Lng: c.lng},
			Status:      models.StatusNormal,
			Metrics:     &metrics,
			LastUpdate:  now,
		})
	}
	return stations
}
