package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/store"
)

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FromDeliveryOrder maps a delivery_orders row to a task.
func FromDeliveryOrder(r store.DeliveryOrderRow) model.TaskModel {
	extra := map[string]any{}
	if r.FuelType != "" {
		extra["fuel_type"] = r.FuelType
	}
	if r.Quantity != 0 {
		extra["quantity"] = r.Quantity
	}
	if r.DeliveryAddress != "" {
		extra["delivery_address"] = r.DeliveryAddress
	}
	if len(extra) == 0 {
		extra = nil
	}
	return model.TaskModel{
		ID:     r.ID,
		Type:   model.TaskDelivery,
		Status: normalizeStatus(r.Status),
		Context: model.TaskContext{
			RestaurantID:     r.RestaurantID,
			CompanyID:        r.CompanyID,
			AssignedWorkerID: r.WorkerID,
			ServiceType:      r.FuelType,
			Extra:            extra,
		},
		CreatedAt: r.CreatedAt,
	}
}

// FromRepairOrder maps a repair_orders row to a task.
func FromRepairOrder(r store.RepairOrderRow) model.TaskModel {
	var extra map[string]any
	if r.Description != "" {
		extra = map[string]any{"description": r.Description}
	}
	return model.TaskModel{
		ID:     r.ID,
		Type:   model.TaskRepair,
		Status: normalizeStatus(r.Status),
		Context: model.TaskContext{
			RestaurantID:     r.RestaurantID,
			CompanyID:        r.CompanyID,
			AssignedWorkerID: r.AssignedTo,
			ServiceType:      r.ServiceType,
			Extra:            extra,
		},
		CreatedAt: r.CreatedAt,
	}
}

// LoadTask fetches and adapts the task. A missing row returns (nil, nil).
func LoadTask(ctx context.Context, repo store.TaskRepository, taskType model.TaskType, id string) (*model.TaskModel, error) {
	switch taskType {
	case model.TaskDelivery:
		row, err := repo.DeliveryOrder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch delivery order %s: %w", id, err)
		}
		if row == nil {
			return nil, nil
		}
		t := FromDeliveryOrder(*row)
		return &t, nil
	case model.TaskRepair:
		row, err := repo.RepairOrder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch repair order %s: %w", id, err)
		}
		if row == nil {
			return nil, nil
		}
		t := FromRepairOrder(*row)
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: %s", store.ErrUnsupportedTaskType, taskType)
	}
}
