package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
)

type offeringRepository struct {
	db *DB
}

var _ catalog.Repository = (*offeringRepository)(nil) // interface compliance check

func NewOfferingRepository(db *DB) *offeringRepository {
	return &offeringRepository{db: db}
}

func (repo *offeringRepository) CreateOffering(ctx context.Context, o catalog.Offering, exec ...core.DBExecutor) (catalog.Offering, error) {
	tbl := repo.db.services
	tbl.Lock()
	defer tbl.Unlock()

	o.ID = uuid.New().String()
	tbl.t[o.ID] = o
	return o, nil
}

func (repo *offeringRepository) GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Offering, error) {
	tbl := repo.db.services
	tbl.RLock()
	defer tbl.RUnlock()

	if o, ok := tbl.t[id]; ok {
		return o, nil
	}
	return catalog.Offering{}, catalog.ErrNotFound
}

func (repo *offeringRepository) QueryOfferings(ctx context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]catalog.Offering, error) {
	tbl := repo.db.services
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]catalog.Offering, 0, len(tbl.t))
	for _, o := range tbl.t {
		if filter != nil && !matchOffering(o, filter) {
			continue
		}
		res = append(res, o)
	}

	sortRows(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] }, ordering,
		core.DBOrdering{Field: "created_at"},
		func(field string, i, j int) int {
			switch field {
			case "updated_at":
				return cmpTime(res[i].UpdatedAt, res[j].UpdatedAt)
			case "title":
				return cmpString(res[i].Title, res[j].Title)
			case "price":
				return cmpInt(res[i].Price, res[j].Price)
			case "category":
				return cmpString(res[i].Category, res[j].Category)
			default:
				return cmpTime(res[i].CreatedAt, res[j].CreatedAt)
			}
		})
	return res, nil
}

func matchOffering(o catalog.Offering, filter *catalog.QueryFilter) bool {
	switch {
	case filter.Search != "" && !(containsFold(o.Title, filter.Search) || containsFold(o.Description, filter.Search)):
		return false
	case filter.Category != "" && o.Category != filter.Category:
		return false
	case filter.ProviderID != "" && o.ProviderID != filter.ProviderID:
		return false
	case filter.Status != "" && o.Status != filter.Status:
		return false
	case filter.Approval != "" && o.ApprovalStatus != filter.Approval:
		return false
	case filter.MinPrice != nil && o.Price < *filter.MinPrice:
		return false
	case filter.MaxPrice != nil && o.Price > *filter.MaxPrice:
		return false
	case filter.Public && !o.IsBookable():
		return false
	}
	return true
}

func (repo *offeringRepository) UpdateOffering(ctx context.Context, o catalog.Offering, exec ...core.DBExecutor) (catalog.Offering, error) {
	tbl := repo.db.services
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.t[o.ID]
	if !ok {
		return catalog.Offering{}, catalog.ErrNotFound
	}
	o.ProviderID = orig.ProviderID
	o.CreatedAt = orig.CreatedAt
	tbl.t[o.ID] = o
	return o, nil
}

func (repo *offeringRepository) DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error {
	services, bookings := repo.db.services, repo.db.bookings
	services.Lock()
	defer services.Unlock()
	bookings.RLock()
	defer bookings.RUnlock()

	if _, ok := services.t[id]; !ok {
		return catalog.ErrNotFound
	}
	for _, b := range bookings.t {
		if b.ServiceID == id {
			return catalog.ErrHasBookings
		}
	}
	delete(services.t, id)
	return nil
}
