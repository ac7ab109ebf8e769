package profile

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("profile")
	ErrInUse    = core.NewFieldError("id", "profile has services or bookings and cannot be deleted")

	errSelfDeactivation = "you cannot deactivate or demote yourself"
)

type (
	Repository interface {
		// CreateProfile inserts the profile, or returns the existing row with the same ID.
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (Profile, error)
		// GetProfiles returns the profiles found among ids; missing ids are skipped.
		GetProfiles(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Profile, error)
		// QueryProfiles applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of full name, company name or email.
		QueryProfiles(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		// DeleteProfile returns ErrInUse when services or bookings reference the profile.
		DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Ensure returns the profile of an auth subject, creating it from its claims when missing.
func (svc *Service) Ensure(ctx context.Context, np NewProfile) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, np.ID)
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "getting profile")
	}

	np.Clean()
	now := core.NowFunc()
	p, err = svc.repo.CreateProfile(ctx, Profile{
		ID:        np.ID,
		Role:      np.Role,
		FullName:  np.FullName,
		Email:     np.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return p, errors.Wrap(err, "creating profile")
}

func (svc *Service) Get(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Participants resolves ids to participants; ids without a profile get a placeholder.
func (svc *Service) Participants(ctx context.Context, ids ...string) (map[string]Participant, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}

	parts := make(map[string]Participant, len(uniq))
	if len(uniq) == 0 {
		return parts, nil
	}
	profiles, err := svc.repo.GetProfiles(ctx, uniq)
	if err != nil {
		return nil, errors.Wrap(err, "getting profiles")
	}
	for _, p := range profiles {
		parts[p.ID] = p.Participant()
	}
	for _, id := range uniq {
		if _, ok := parts[id]; !ok {
			parts[id] = Placeholder(id)
		}
	}
	return parts, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, filter, ordering)
}

// Update applies up to the profile `id`. Only admins may touch other profiles, roles and activity.
func (svc *Service) Update(ctx context.Context, actor Profile, id string, up UpdateProfile) (Profile, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return Profile{}, ErrNotFound
	}
	if up.HasAdminFields() {
		if !actor.IsAdmin() {
			return Profile{}, core.ErrForbidden
		}
		if actor.ID == id && ((up.IsActive != nil && !*up.IsActive) || (up.Role != nil && *up.Role != RoleAdmin)) {
			return Profile{}, core.NewFieldError("is_active", errSelfDeactivation)
		}
	}

	p, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if up.FullName != nil {
		p.FullName = *up.FullName
	}
	if up.Phone != nil {
		p.Phone = *up.Phone
	}
	if up.CompanyName != nil {
		p.CompanyName = *up.CompanyName
	}
	if up.AvatarURL != nil {
		p.AvatarURL = *up.AvatarURL
	}
	if up.Role != nil {
		p.Role = *up.Role
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	p.UpdatedAt = core.NowFunc()

	p, err = svc.repo.UpdateProfile(ctx, p)
	return p, errors.Wrap(err, "updating profile")
}

// SetRole is used by the admin CLI.
func (svc *Service) SetRole(ctx context.Context, id, role string) (Profile, error) {
	if !IsRole(role) {
		return Profile{}, core.NewFieldError("role", "invalid role")
	}
	p, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	p.Role = role
	p.IsActive = true
	p.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateProfile(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, actor Profile, id string) error {
	if !actor.IsAdmin() {
		return core.ErrForbidden
	}
	if actor.ID == id {
		return core.ErrForbidden
	}
	if _, err := svc.repo.GetProfile(ctx, id); err != nil {
		return err
	}
	if err := svc.repo.DeleteProfile(ctx, id); err != nil {
		if err == ErrInUse {
			return err
		}
		return errors.Wrap(err, "deleting profile")
	}
	return nil
}
