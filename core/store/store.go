package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kilianp07/fuelops/core/model"
)

// ErrUnsupportedTaskType is returned for task types without a backing table.
var ErrUnsupportedTaskType = errors.New("store: unsupported task type")

// AssignableStatuses lists task statuses a conditional assignment accepts.
var AssignableStatuses = []string{"pending", "confirmed", "open", "unassigned", "new"}

// DeliveryOrderRow is the projection read from delivery_orders.
type DeliveryOrderRow struct {
	ID              string    `json:"id" yaml:"id"`
	RestaurantID    string    `json:"restaurant_id" yaml:"restaurant_id"`
	CompanyID       string    `json:"company_id" yaml:"company_id"`
	Status          string    `json:"status" yaml:"status"`
	WorkerID        string    `json:"worker_id" yaml:"worker_id"`
	FuelType        string    `json:"fuel_type" yaml:"fuel_type"`
	Quantity        float64   `json:"quantity" yaml:"quantity"`
	DeliveryAddress string    `json:"delivery_address" yaml:"delivery_address"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// RepairOrderRow is the projection read from repair_orders.
type RepairOrderRow struct {
	ID           string    `json:"id" yaml:"id"`
	RestaurantID string    `json:"restaurant_id" yaml:"restaurant_id"`
	CompanyID    string    `json:"company_id" yaml:"company_id"`
	Status       string    `json:"status" yaml:"status"`
	AssignedTo   string    `json:"assigned_to" yaml:"assigned_to"`
	ServiceType  string    `json:"service_type" yaml:"service_type"`
	Description  string    `json:"description" yaml:"description"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// WorkerRow is the projection read from workers. WorkerType and ProductTypes
// are not schema enforced upstream and may hold a JSON string, a list or a
// scalar.
type WorkerRow struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Status       string   `json:"status" yaml:"status"`
	CompanyID    string   `json:"company_id" yaml:"company_id"`
	WorkerType   any      `json:"worker_type" yaml:"worker_type"`
	ProductTypes any      `json:"product_types" yaml:"product_types"`
	Lat          *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty" yaml:"lng,omitempty"`
	Address      string   `json:"address,omitempty" yaml:"address,omitempty"`
}

// TaskRepository fetches task rows by id. A missing row is (nil, nil).
type TaskRepository interface {
	DeliveryOrder(ctx context.Context, id string) (*DeliveryOrderRow, error)
	RepairOrder(ctx context.Context, id string) (*RepairOrderRow, error)
}

// WorkerRepository lists the workers of a company.
type WorkerRepository interface {
	WorkersByCompany(ctx context.Context, companyID string) ([]WorkerRow, error)
}

// TaskAssigner performs the conditional assignment update. It returns false
// when the task is no longer in an assignable status, which keeps at most one
// active allocation per task across concurrent dispatch calls.
type TaskAssigner interface {
	AssignWorker(ctx context.Context, taskType model.TaskType, taskID, workerID string) (bool, error)
}

// IsAssignable reports whether status accepts a new assignment.
func IsAssignable(status string) bool {
	status = strings.ToLower(strings.TrimSpace(status))
	for _, s := range AssignableStatuses {
		if s == status {
			return true
		}
	}
	return false
}
