package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/store"
	"github.com/kilianp07/fuelops/core/store/memory"
)

func TestFromDeliveryOrder(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	task := FromDeliveryOrder(store.DeliveryOrderRow{
		ID: "d1", RestaurantID: "r1", CompanyID: "c1", Status: " PENDING ",
		WorkerID: "w1", FuelType: "diesel", Quantity: 40, CreatedAt: now,
	})
	assert.Equal(t, "d1", task.ID)
	assert.Equal(t, model.TaskDelivery, task.Type)
	assert.Equal(t, "pending", task.Status)
	assert.Equal(t, "c1", task.Context.CompanyID)
	assert.Equal(t, "w1", task.Context.AssignedWorkerID)
	assert.Equal(t, 40.0, task.Context.Extra["quantity"])
	assert.Equal(t, now, task.CreatedAt)
	assert.Equal(t, "delivery", task.Skill())
}

func TestFromRepairOrder(t *testing.T) {
	task := FromRepairOrder(store.RepairOrderRow{ID: "r1", CompanyID: "c1", Status: "Open", AssignedTo: "w2", ServiceType: "fryer"})
	assert.Equal(t, model.TaskRepair, task.Type)
	assert.Equal(t, "open", task.Status)
	assert.Equal(t, "fryer", task.Context.ServiceType)
	assert.Equal(t, "w2", task.Context.AssignedWorkerID)
	assert.Nil(t, task.Context.Extra)
}

func TestFromWorker(t *testing.T) {
	lat, lng := 48.85, 2.35
	w := FromWorker(store.WorkerRow{
		ID: "w1", Name: " Alice ", Status: "Active", CompanyID: "c1",
		WorkerType: `["delivery"]`, ProductTypes: []any{"diesel", "delivery"},
		Lat: &lat, Lng: &lng,
	})
	assert.Equal(t, []string{"delivery", "diesel"}, w.Skills)
	assert.Equal(t, "Alice", w.Context.Name)
	assert.Equal(t, "active", w.Context.Status)
	require.NotNil(t, w.Location)
	assert.Equal(t, lat, w.Location.Lat)
	assert.Zero(t, w.Load)

	noLoc := FromWorker(store.WorkerRow{ID: "w2", Lat: &lat})
	assert.Nil(t, noLoc.Location)
}

type failingRepo struct{}

func (failingRepo) DeliveryOrder(context.Context, string) (*store.DeliveryOrderRow, error) {
	return nil, errors.New("db down")
}
func (failingRepo) RepairOrder(context.Context, string) (*store.RepairOrderRow, error) {
	return nil, errors.New("db down")
}

func TestLoadTask(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	s.PutDeliveryOrder(store.DeliveryOrderRow{ID: "d1", CompanyID: "c1", Status: "pending"})

	task, err := LoadTask(ctx, s, model.TaskDelivery, "d1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "d1", task.ID)

	task, err = LoadTask(ctx, s, model.TaskRepair, "d1")
	require.NoError(t, err)
	assert.Nil(t, task)

	_, err = LoadTask(ctx, s, model.TaskRental, "d1")
	assert.ErrorIs(t, err, store.ErrUnsupportedTaskType)

	_, err = LoadTask(ctx, failingRepo{}, model.TaskDelivery, "d1")
	assert.EqualError(t, err, "fetch delivery order d1: db down")
}
