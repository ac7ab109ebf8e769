package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("service")
	ErrHasBookings = core.NewFieldError("id", "service has bookings and cannot be deleted")
)

type (
	Repository interface {
		CreateOffering(ctx context.Context, o Offering, exec ...core.DBExecutor) (Offering, error)
		GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (Offering, error)
		// QueryOfferings applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on the title or description.
		QueryOfferings(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Offering, error)
		UpdateOffering(ctx context.Context, o Offering, exec ...core.DBExecutor) (Offering, error)
		// DeleteOffering returns ErrHasBookings when bookings reference the offering.
		DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo            Repository
		defaultCurrency string
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, defaultCurrency: conf.Invoice.Currency}
}

func canManage(actor profile.Profile, o Offering) bool {
	return actor.IsAdmin() || actor.ID == o.ProviderID
}

func (svc *Service) Create(ctx context.Context, actor profile.Profile, no NewOffering) (Offering, error) {
	if !(actor.IsProvider() || actor.IsAdmin()) {
		return Offering{}, core.ErrForbidden
	}

	now := core.NowFunc()
	o := Offering{
		ProviderID:      actor.ID,
		Title:           no.Title,
		Description:     no.Description,
		Category:        no.Category,
		Price:           no.Price,
		Currency:        strings.ToUpper(no.Currency),
		DurationMinutes: no.DurationMinutes,
		Status:          no.Status,
		ApprovalStatus:  ApprovalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if o.Currency == "" {
		o.Currency = svc.defaultCurrency
	}
	if o.Status == "" {
		o.Status = StatusDraft
	}
	o, err := svc.repo.CreateOffering(ctx, o)
	return o, errors.Wrap(err, "creating service")
}

// Get returns bookable offerings to anyone and the others to their provider and admins.
func (svc *Service) Get(ctx context.Context, actor profile.Profile, id string) (Offering, error) {
	o, err := svc.repo.GetOffering(ctx, id)
	if err != nil {
		return Offering{}, err
	}
	if !o.IsBookable() && !canManage(actor, o) {
		return Offering{}, ErrNotFound
	}
	return o, nil
}

// Query lists offerings. Non admins only see bookable offerings, unless they list their own.
// Searches without an explicit ordering are ranked by title similarity.
func (svc *Service) Query(ctx context.Context, actor profile.Profile, filter *QueryFilter, ordering []core.DBOrdering) ([]Offering, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.IsAdmin() && filter.ProviderID != actor.ID {
		filter.Public = true
	}
	offerings, err := svc.repo.QueryOfferings(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying services")
	}
	if filter.Search != "" && len(ordering) == 0 {
		rankBySimilarity(offerings, filter.Search)
	}
	return offerings, nil
}

func (svc *Service) Update(ctx context.Context, actor profile.Profile, id string, uo UpdateOffering) (Offering, error) {
	o, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Offering{}, err
	}
	if !canManage(actor, o) {
		return Offering{}, core.ErrForbidden
	}

	if uo.Title != nil {
		o.Title = *uo.Title
	}
	if uo.Description != nil {
		o.Description = *uo.Description
	}
	if uo.Category != nil {
		o.Category = *uo.Category
	}
	if uo.Price != nil {
		o.Price = *uo.Price
	}
	if uo.Currency != nil {
		o.Currency = strings.ToUpper(*uo.Currency)
	}
	if uo.DurationMinutes != nil {
		o.DurationMinutes = *uo.DurationMinutes
	}
	if uo.Status != nil {
		o.Status = *uo.Status
	}
	// providers' content edits go back to review
	if !actor.IsAdmin() && uo.changesContent() {
		o.ApprovalStatus = ApprovalPending
		o.ReviewNote = ""
	}
	o.UpdatedAt = core.NowFunc()

	o, err = svc.repo.UpdateOffering(ctx, o)
	return o, errors.Wrap(err, "updating service")
}

func (svc *Service) Review(ctx context.Context, actor profile.Profile, id string, r Review) (Offering, error) {
	if !actor.IsAdmin() {
		return Offering{}, core.ErrForbidden
	}
	o, err := svc.repo.GetOffering(ctx, id)
	if err != nil {
		return Offering{}, err
	}
	o.ApprovalStatus = r.Decision
	o.ReviewNote = r.Note
	o.UpdatedAt = core.NowFunc()

	o, err = svc.repo.UpdateOffering(ctx, o)
	return o, errors.Wrap(err, "reviewing service")
}

func (svc *Service) Delete(ctx context.Context, actor profile.Profile, id string) error {
	o, err := svc.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !canManage(actor, o) {
		return core.ErrForbidden
	}
	if err = svc.repo.DeleteOffering(ctx, id); err != nil {
		if err == ErrHasBookings {
			return err
		}
		return errors.Wrap(err, "deleting service")
	}
	return nil
}

// rankBySimilarity orders offerings by how close their title is to the search term.
// Titles containing the term always rank first.
func rankBySimilarity(offerings []Offering, search string) {
	term := strings.ToLower(search)
	scores := make(map[string]float64, len(offerings))
	for _, o := range offerings {
		title := strings.ToLower(o.Title)
		score := difflib.NewMatcher(strings.Split(term, ""), strings.Split(title, "")).Ratio()
		if strings.Contains(title, term) {
			score++
		}
		scores[o.ID] = score
	}
	sort.SliceStable(offerings, func(i, j int) bool {
		return scores[offerings[i].ID] > scores[offerings[j].ID]
	})
}
