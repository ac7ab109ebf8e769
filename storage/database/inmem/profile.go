package inmemdb

import (
	"context"
	"strings"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	tbl := repo.db.profiles
	tbl.Lock()
	defer tbl.Unlock()

	if existing, ok := tbl.t[p.ID]; ok {
		return existing, nil
	}
	p.Email = strings.ToLower(p.Email)
	tbl.t[p.ID] = p
	return p, nil
}

func (repo *profileRepository) GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (profile.Profile, error) {
	tbl := repo.db.profiles
	tbl.RLock()
	defer tbl.RUnlock()

	if p, ok := tbl.t[id]; ok {
		return p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) GetProfileByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (profile.Profile, error) {
	tbl := repo.db.profiles
	tbl.RLock()
	defer tbl.RUnlock()

	var found *profile.Profile
	for _, p := range tbl.t {
		p := p
		if strings.EqualFold(p.Email, email) && (found == nil || p.CreatedAt.Before(found.CreatedAt)) {
			found = &p
		}
	}
	if found == nil {
		return profile.Profile{}, profile.ErrNotFound
	}
	return *found, nil
}

func (repo *profileRepository) GetProfiles(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]profile.Profile, error) {
	tbl := repo.db.profiles
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]profile.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := tbl.t[id]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func (repo *profileRepository) QueryProfiles(ctx context.Context, filter *profile.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]profile.Profile, error) {
	tbl := repo.db.profiles
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]profile.Profile, 0, len(tbl.t))
	for _, p := range tbl.t {
		if filter != nil {
			if filter.Search != "" && !(containsFold(p.FullName, filter.Search) ||
				containsFold(p.CompanyName, filter.Search) || containsFold(p.Email, filter.Search)) {
				continue
			}
			if len(filter.Roles) > 0 && !containsString(filter.Roles, p.Role) {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
		}
		res = append(res, p)
	}

	sortRows(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] }, ordering,
		core.DBOrdering{Field: "created_at"},
		func(field string, i, j int) int {
			switch field {
			case "updated_at":
				return cmpTime(res[i].UpdatedAt, res[j].UpdatedAt)
			case "full_name":
				return cmpString(res[i].FullName, res[j].FullName)
			case "email":
				return cmpString(res[i].Email, res[j].Email)
			case "role":
				return cmpString(res[i].Role, res[j].Role)
			default:
				return cmpTime(res[i].CreatedAt, res[j].CreatedAt)
			}
		})
	return res, nil
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	tbl := repo.db.profiles
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.t[p.ID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	p.Email = strings.ToLower(p.Email)
	p.CreatedAt = orig.CreatedAt
	tbl.t[p.ID] = p
	return p, nil
}

func (repo *profileRepository) DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error {
	profiles, services, bookings := repo.db.profiles, repo.db.services, repo.db.bookings
	profiles.Lock()
	defer profiles.Unlock()
	services.RLock()
	defer services.RUnlock()
	bookings.RLock()
	defer bookings.RUnlock()

	if _, ok := profiles.t[id]; !ok {
		return profile.ErrNotFound
	}
	for _, o := range services.t {
		if o.ProviderID == id {
			return profile.ErrInUse
		}
	}
	for _, b := range bookings.t {
		if b.IsParticipant(id) {
			return profile.ErrInUse
		}
	}
	delete(profiles.t, id)
	return nil
}
