package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/store"
)

// FromWorker maps a workers row. Skills merge worker_type and product_types.
func FromWorker(r store.WorkerRow) model.WorkerModel {
	w := model.WorkerModel{
		ID:     r.ID,
		Skills: NormalizeSkills(r.WorkerType, r.ProductTypes),
		Context: model.WorkerContext{
			Name:      strings.TrimSpace(r.Name),
			Status:    normalizeStatus(r.Status),
			CompanyID: r.CompanyID,
		},
	}
	if r.Lat != nil && r.Lng != nil {
		w.Location = &model.Location{Lat: *r.Lat, Lng: *r.Lng, Address: r.Address}
	}
	return w
}

// FromWorkers maps a slice of rows, preserving order.
func FromWorkers(rows []store.WorkerRow) []model.WorkerModel {
	out := make([]model.WorkerModel, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromWorker(r))
	}
	return out
}

// LoadWorkers lists and adapts the workers of a company.
func LoadWorkers(ctx context.Context, repo store.WorkerRepository, companyID string) ([]model.WorkerModel, error) {
	rows, err := repo.WorkersByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list workers of %s: %w", companyID, err)
	}
	return FromWorkers(rows), nil
}
