package repository

import (
	"errors"
	"sync"

	"github.com/langchou/stationos/internal/models"
)

// InboxCapacity 工单和改道通知各自保留的条数
const InboxCapacity = 50

// ErrTicketNotFound 工单不存在
var ErrTicketNotFound = errors.New("ticket not found")

// TicketStore 维修工单存储
type TicketStore interface {
	Add(t *models.Ticket)
	Get(id string) (*models.Ticket, error)
	Update(id string, fn func(t *models.Ticket) error) (*models.Ticket, error)
	List() []*models.Ticket
	Clear() int
}

// MemoryTicketStore 进程内工单存储，最新在前，超出容量丢弃最旧的
type MemoryTicketStore struct {
	mu      sync.RWMutex
	tickets []*models.Ticket
}

// NewMemoryTicketStore 创建工单存储
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{}
}

// Add 添加工单
func (s *MemoryTicketStore) Add(t *models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets = append([]*models.Ticket{t.Clone()}, s.tickets...)
	if len(s.tickets) > InboxCapacity {
		s.tickets = s.tickets[:InboxCapacity]
	}
}

// Get 获取工单副本
func (s *MemoryTicketStore) Get(id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tickets {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, ErrTicketNotFound
}

// Update 在写锁内修改工单，fn 返回错误时不落地
func (s *MemoryTicketStore) Update(id string, fn func(t *models.Ticket) error) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tickets {
		if t.ID != id {
			continue
		}
		c := t.Clone()
		if err := fn(c); err != nil {
			return nil, err
		}
		s.tickets[i] = c
		return c.Clone(), nil
	}
	return nil, ErrTicketNotFound
}

// List 最新在前
func (s *MemoryTicketStore) List() []*models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t.Clone())
	}
	return out
}

// Clear 清空并返回清除的条数
func (s *MemoryTicketStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tickets)
	s.tickets = nil
	return n
}

// RerouteHistory 改道通知历史
type RerouteHistory interface {
	Add(n *models.RerouteNotification)
	List() (notifications []*models.RerouteNotification, total int)
	Clear() int
}

// MemoryRerouteHistory 进程内改道通知历史，按接收顺序保留最近的通知
type MemoryRerouteHistory struct {
	mu            sync.RWMutex
	notifications []*models.RerouteNotification
	total         int
}

// NewMemoryRerouteHistory 创建改道通知历史
func NewMemoryRerouteHistory() *MemoryRerouteHistory {
	return &MemoryRerouteHistory{}
}

// Add 追加通知
func (h *MemoryRerouteHistory) Add(n *models.RerouteNotification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := *n
	h.notifications = append(h.notifications, &c)
	if over := len(h.notifications) - InboxCapacity; over > 0 {
		h.notifications = append([]*models.RerouteNotification(nil), h.notifications[over:]...)
	}
	h.total++
}

// List 返回保留的通知和清空以来收到的总数
func (h *MemoryRerouteHistory) List() ([]*models.RerouteNotification, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*models.RerouteNotification, 0, len(h.notifications))
	for _, n := range h.notifications {
		c := *n
		out = append(out, &c)
	}
	return out, h.total
}

// Clear 清空并返回清除前的总数
func (h *MemoryRerouteHistory) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.total
	h.notifications = nil
	h.total = 0
	return n
}
