package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	errInvalidArguments = errors.New("invalid arguments")
	errTransportExists  = errors.New("transport already registered")
)

// TransportAdapter определяет жизненный цикл входного транспорта.
type TransportAdapter interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TransportManager управляет запуском и остановкой транспортов.
type TransportManager struct {
	mu         sync.Mutex
	transports map[string]TransportAdapter
	started    []TransportAdapter
}

// NewTransportManager создает пустой менеджер транспортов.
func NewTransportManager() *TransportManager {
	return &TransportManager{transports: make(map[string]TransportAdapter)}
}

// Register добавляет транспорт; имена должны быть уникальны.
func (m *TransportManager) Register(adapter TransportAdapter) error {
	if adapter == nil {
		return fmt.Errorf("transport is nil: %w", errInvalidArguments)
	}
	name := adapter.Name()
	if name == "" {
		return fmt.Errorf("transport name is empty: %w", errInvalidArguments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transports[name]; exists {
		return fmt.Errorf("%s: %w", name, errTransportExists)
	}
	m.transports[name] = adapter
	return nil
}

// Names возвращает отсортированные имена транспортов.
func (m *TransportManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.transports))
	for name := range m.transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll запускает транспорты в порядке имен.
// При ошибке уже запущенные транспорты останавливаются.
func (m *TransportManager) StartAll(ctx context.Context) error {
	for _, name := range m.Names() {
		m.mu.Lock()
		tr := m.transports[name]
		m.mu.Unlock()

		if err := tr.Start(ctx); err != nil {
			_ = m.StopAll(ctx)
			return fmt.Errorf("start transport %s: %w", name, err)
		}
		m.mu.Lock()
		m.started = append(m.started, tr)
		m.mu.Unlock()
	}
	return nil
}

// StopAll останавливает запущенные транспорты в обратном порядке.
func (m *TransportManager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	list := m.started
	m.started = nil
	m.mu.Unlock()

	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		if err := list[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop transport %s: %w", list[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
