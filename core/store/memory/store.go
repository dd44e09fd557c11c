// Package memory provides an in-process implementation of the store
// interfaces, used by tests and local CLI runs.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/store"
)

// Fixture is the on-disk layout accepted by LoadFixture.
type Fixture struct {
	DeliveryOrders []store.DeliveryOrderRow `yaml:"delivery_orders"`
	RepairOrders   []store.RepairOrderRow   `yaml:"repair_orders"`
	Workers        []store.WorkerRow        `yaml:"workers"`
}

// Store keeps rows in maps guarded by a RWMutex.
type Store struct {
	mu         sync.RWMutex
	deliveries map[string]store.DeliveryOrderRow
	repairs    map[string]store.RepairOrderRow
	workers    []store.WorkerRow
}

// New returns an empty store.
func New() *Store {
	return &Store{
		deliveries: make(map[string]store.DeliveryOrderRow),
		repairs:    make(map[string]store.RepairOrderRow),
	}
}

// LoadFixture builds a store from a YAML fixture file.
func LoadFixture(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	s := New()
	for _, d := range fx.DeliveryOrders {
		s.PutDeliveryOrder(d)
	}
	for _, r := range fx.RepairOrders {
		s.PutRepairOrder(r)
	}
	for _, w := range fx.Workers {
		s.PutWorker(w)
	}
	return s, nil
}

func (s *Store) PutDeliveryOrder(r store.DeliveryOrderRow) {
	s.mu.Lock()
	s.deliveries[r.ID] = r
	s.mu.Unlock()
}

func (s *Store) PutRepairOrder(r store.RepairOrderRow) {
	s.mu.Lock()
	s.repairs[r.ID] = r
	s.mu.Unlock()
}

// PutWorker inserts or replaces a worker, keeping insertion order.
func (s *Store) PutWorker(w store.WorkerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.workers {
		if s.workers[i].ID == w.ID {
			s.workers[i] = w
			return
		}
	}
	s.workers = append(s.workers, w)
}

func (s *Store) DeliveryOrder(_ context.Context, id string) (*store.DeliveryOrderRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) RepairOrder(_ context.Context, id string) (*store.RepairOrderRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repairs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) WorkersByCompany(_ context.Context, companyID string) ([]store.WorkerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.WorkerRow
	for _, w := range s.workers {
		if w.CompanyID == companyID {
			out = append(out, w)
		}
	}
	return out, nil
}

// AssignWorker mirrors the conditional SQL update of the Postgres store.
func (s *Store) AssignWorker(_ context.Context, taskType model.TaskType, taskID, workerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch taskType {
	case model.TaskDelivery:
		r, ok := s.deliveries[taskID]
		if !ok || !store.IsAssignable(r.Status) {
			return false, nil
		}
		r.WorkerID = workerID
		r.Status = "assigned"
		s.deliveries[taskID] = r
		return true, nil
	case model.TaskRepair:
		r, ok := s.repairs[taskID]
		if !ok || !store.IsAssignable(r.Status) {
			return false, nil
		}
		r.AssignedTo = workerID
		r.Status = "assigned"
		s.repairs[taskID] = r
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", store.ErrUnsupportedTaskType, taskType)
	}
}
