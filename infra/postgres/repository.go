package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/store"
)

// Repository reads business rows and performs the conditional assignment.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ store.TaskRepository   = (*Repository)(nil)
	_ store.WorkerRepository = (*Repository)(nil)
	_ store.TaskAssigner     = (*Repository)(nil)
)

func (r *Repository) DeliveryOrder(ctx context.Context, id string) (*store.DeliveryOrderRow, error) {
	var (
		row      store.DeliveryOrderRow
		workerID *string
		fuel     *string
		address  *string
		quantity *float64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, restaurant_id::text, company_id::text, status, worker_id::text, fuel_type, quantity, delivery_address, created_at
		FROM delivery_orders WHERE id::text = $1
	`, id).Scan(&row.ID, &row.RestaurantID, &row.CompanyID, &row.Status, &workerID, &fuel, &quantity, &address, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delivery order %s: %w", id, err)
	}
	row.WorkerID = deref(workerID)
	row.FuelType = deref(fuel)
	row.DeliveryAddress = deref(address)
	if quantity != nil {
		row.Quantity = *quantity
	}
	return &row, nil
}

func (r *Repository) RepairOrder(ctx context.Context, id string) (*store.RepairOrderRow, error) {
	var (
		row         store.RepairOrderRow
		assignedTo  *string
		serviceType *string
		description *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, restaurant_id::text, company_id::text, status, assigned_to::text, service_type, description, created_at
		FROM repair_orders WHERE id::text = $1
	`, id).Scan(&row.ID, &row.RestaurantID, &row.CompanyID, &row.Status, &assignedTo, &serviceType, &description, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repair order %s: %w", id, err)
	}
	row.AssignedTo = deref(assignedTo)
	row.ServiceType = deref(serviceType)
	row.Description = deref(description)
	return &row, nil
}

// WorkersByCompany lists the workers of a company. worker_type and
// product_types are read as text and handed to the adapter untouched.
func (r *Repository) WorkersByCompany(ctx context.Context, companyID string) ([]store.WorkerRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, status, company_id::text, worker_type::text, product_types::text, lat, lng, address
		FROM workers WHERE company_id::text = $1 ORDER BY id
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("workers of %s: %w", companyID, err)
	}
	defer rows.Close()
	var list []store.WorkerRow
	for rows.Next() {
		var (
			w            store.WorkerRow
			name         *string
			workerType   *string
			productTypes *string
			address      *string
		)
		if err := rows.Scan(&w.ID, &name, &w.Status, &w.CompanyID, &workerType, &productTypes, &w.Lat, &w.Lng, &address); err != nil {
			return nil, err
		}
		w.Name = deref(name)
		w.Address = deref(address)
		w.WorkerType = rawSkills(workerType)
		w.ProductTypes = rawSkills(productTypes)
		list = append(list, w)
	}
	return list, rows.Err()
}

// AssignWorker sets the worker and moves the task to assigned only while the
// row is still in an assignable status.
func (r *Repository) AssignWorker(ctx context.Context, taskType model.TaskType, taskID, workerID string) (bool, error) {
	var query string
	switch taskType {
	case model.TaskDelivery:
		query = `UPDATE delivery_orders SET worker_id = $2, status = 'assigned'
			WHERE id::text = $1 AND lower(trim(status)) = ANY($3)`
	case model.TaskRepair:
		query = `UPDATE repair_orders SET assigned_to = $2, status = 'assigned'
			WHERE id::text = $1 AND lower(trim(status)) = ANY($3)`
	default:
		return false, fmt.Errorf("%w: %s", store.ErrUnsupportedTaskType, taskType)
	}
	tag, err := r.pool.Exec(ctx, query, taskID, workerID, store.AssignableStatuses)
	if err != nil {
		return false, fmt.Errorf("assign %s %s: %w", taskType, taskID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// rawSkills keeps JSON text as a string so the adapter can parse it, and maps
// SQL NULL to nil.
func rawSkills(s *string) any {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || v == "null" {
		return nil
	}
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") && !json.Valid([]byte(v)) {
		// Postgres text[] literal: {a,b}
		return strings.Split(strings.Trim(v, "{}"), ",")
	}
	return v
}
