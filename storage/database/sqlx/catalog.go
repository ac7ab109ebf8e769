package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
)

const offeringColumns = `id, provider_id, title, description, category, price, currency, duration_minutes,
	status, approval_status, review_note, created_at, updated_at`

type offeringRow struct {
	ID              string    `db:"id"`
	ProviderID      string    `db:"provider_id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	Category        string    `db:"category"`
	Price           int64     `db:"price"`
	Currency        string    `db:"currency"`
	DurationMinutes int       `db:"duration_minutes"`
	Status          string    `db:"status"`
	ApprovalStatus  string    `db:"approval_status"`
	ReviewNote      string    `db:"review_note"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func newOfferingRow(o catalog.Offering) offeringRow {
	return offeringRow{
		ID:              o.ID,
		ProviderID:      o.ProviderID,
		Title:           o.Title,
		Description:     o.Description,
		Category:        o.Category,
		Price:           o.Price,
		Currency:        o.Currency,
		DurationMinutes: o.DurationMinutes,
		Status:          o.Status,
		ApprovalStatus:  o.ApprovalStatus,
		ReviewNote:      o.ReviewNote,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

func (r offeringRow) offering() catalog.Offering {
	return catalog.Offering{
		ID:              r.ID,
		ProviderID:      r.ProviderID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Price:           r.Price,
		Currency:        r.Currency,
		DurationMinutes: r.DurationMinutes,
		Status:          r.Status,
		ApprovalStatus:  r.ApprovalStatus,
		ReviewNote:      r.ReviewNote,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type offeringRepository struct {
	base
}

var _ catalog.Repository = (*offeringRepository)(nil) // interface compliance check

func NewOfferingRepository(db *sqlx.DB) *offeringRepository {
	return &offeringRepository{base{db: db}}
}

func (repo offeringRepository) CreateOffering(ctx context.Context, o catalog.Offering, exec ...core.DBExecutor) (catalog.Offering, error) {
	o.ID = uuid.New().String()
	q := `INSERT INTO services (` + offeringColumns + `) VALUES (:id, :provider_id, :title, :description,
		:category, :price, :currency, :duration_minutes, :status, :approval_status, :review_note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newOfferingRow(o)); err != nil {
		return catalog.Offering{}, errors.Wrap(err, "inserting service")
	}
	return o, nil
}

func (repo offeringRepository) GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Offering, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.Offering{}, catalog.ErrNotFound
	}
	var row offeringRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+offeringColumns+" FROM services WHERE id = $1", id)
	if err != nil {
		return catalog.Offering{}, trapNoRowsErr(err, catalog.ErrNotFound, "getting service")
	}
	return row.offering(), nil
}

func (repo offeringRepository) QueryOfferings(ctx context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]catalog.Offering, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + escapeLike(filter.Search) + "%"
			w.add("(title ILIKE ? OR description ILIKE ?)", val, val)
		}
		if filter.Category != "" {
			w.add("category = ?", filter.Category)
		}
		if filter.ProviderID != "" {
			if _, err := uuid.Parse(filter.ProviderID); err != nil {
				return []catalog.Offering{}, nil
			}
			w.add("provider_id = ?", filter.ProviderID)
		}
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		if filter.Approval != "" {
			w.add("approval_status = ?", filter.Approval)
		}
		if filter.MinPrice != nil {
			w.add("price >= ?", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			w.add("price <= ?", *filter.MaxPrice)
		}
		if filter.Public {
			w.add("status = ? AND approval_status = ?", catalog.StatusActive, catalog.ApprovalApproved)
		}
	}

	q := "SELECT " + offeringColumns + " FROM services" + w.String() +
		" ORDER BY " + core.OrderByClause(ordering, "created_at DESC")
	var rows []offeringRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying services")
	}
	offerings := make([]catalog.Offering, 0, len(rows))
	for _, r := range rows {
		offerings = append(offerings, r.offering())
	}
	return offerings, nil
}

func (repo offeringRepository) UpdateOffering(ctx context.Context, o catalog.Offering, exec ...core.DBExecutor) (catalog.Offering, error) {
	q := `UPDATE services SET title = :title, description = :description, category = :category, price = :price,
		currency = :currency, duration_minutes = :duration_minutes, status = :status,
		approval_status = :approval_status, review_note = :review_note, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newOfferingRow(o))
	if err != nil {
		return catalog.Offering{}, errors.Wrap(err, "updating service")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Offering{}, catalog.ErrNotFound
	}
	return o, nil
}

func (repo offeringRepository) DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM services WHERE id = $1", id)
	if err != nil {
		if pqCode(err) == foreignKeyViolation {
			return catalog.ErrHasBookings
		}
		return errors.Wrap(err, "deleting service")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
