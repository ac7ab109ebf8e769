package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

const profileColumns = "id, role, full_name, email, phone, company_name, avatar_url, is_active, created_at, updated_at"

type profileRow struct {
	ID          string    `db:"id"`
	Role        string    `db:"role"`
	FullName    string    `db:"full_name"`
	Email       string    `db:"email"`
	Phone       string    `db:"phone"`
	CompanyName string    `db:"company_name"`
	AvatarURL   string    `db:"avatar_url"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r profileRow) profile() profile.Profile {
	return profile.Profile{
		ID:          r.ID,
		Role:        r.Role,
		FullName:    r.FullName,
		Email:       r.Email,
		Phone:       r.Phone,
		CompanyName: r.CompanyName,
		AvatarURL:   r.AvatarURL,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type profileRepository struct {
	base
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{base{db: db}}
}

func (repo profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	// concurrent first requests of the same subject both end up with the stored row
	q := `INSERT INTO profiles (` + profileColumns + `)
		VALUES (:id, :role, :full_name, :email, :phone, :company_name, :avatar_url, :is_active, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING ` + profileColumns
	row := profileRow{
		ID:          p.ID,
		Role:        p.Role,
		FullName:    p.FullName,
		Email:       p.Email,
		Phone:       p.Phone,
		CompanyName: p.CompanyName,
		AvatarURL:   p.AvatarURL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	exe := repo.getExec(exec)
	query, args, err := sqlx.Named(q, row)
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "binding profile")
	}
	var saved profileRow
	if err = sqlx.GetContext(ctx, exe, &saved, exe.Rebind(query), args...); err != nil {
		return profile.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return saved.profile(), nil
}

func (repo profileRepository) GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (profile.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return profile.Profile{}, profile.ErrNotFound
	}
	var row profileRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	if err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "getting profile")
	}
	return row.profile(), nil
}

func (repo profileRepository) GetProfileByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (profile.Profile, error) {
	var row profileRow
	q := "SELECT " + profileColumns + " FROM profiles WHERE LOWER(email) = LOWER($1) ORDER BY created_at LIMIT 1"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, email); err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "getting profile by email")
	}
	return row.profile(), nil
}

func (repo profileRepository) GetProfiles(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]profile.Profile, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []profile.Profile{}, nil
	}
	var rows []profileRow
	q := "SELECT " + profileColumns + " FROM profiles WHERE id = ANY($1::uuid[])"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, pq.Array(valid)); err != nil {
		return nil, errors.Wrap(err, "getting profiles")
	}
	return profiles(rows), nil
}

func (repo profileRepository) QueryProfiles(ctx context.Context, filter *profile.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]profile.Profile, error) {
	var w where
	if filter != nil {
		// profiles with full name, company name or email matching the search keyword
		if filter.Search != "" {
			val := "%" + escapeLike(filter.Search) + "%"
			w.add("(full_name ILIKE ? OR company_name ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		if len(filter.Roles) > 0 {
			w.add("role = ANY(?)", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	q := "SELECT " + profileColumns + " FROM profiles" + w.String() +
		" ORDER BY " + core.OrderByClause(ordering, "created_at DESC")
	var rows []profileRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	return profiles(rows), nil
}

func (repo profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	q := `UPDATE profiles SET role = $2, full_name = $3, email = $4, phone = $5, company_name = $6,
		avatar_url = $7, is_active = $8, updated_at = $9
		WHERE id = $1 RETURNING ` + profileColumns
	var row profileRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q,
		p.ID, p.Role, p.FullName, strings.ToLower(p.Email), p.Phone, p.CompanyName, p.AvatarURL, p.IsActive, p.UpdatedAt.UTC())
	if err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "updating profile")
	}
	return row.profile(), nil
}

func (repo profileRepository) DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM profiles WHERE id = $1", id)
	if err != nil {
		if pqCode(err) == foreignKeyViolation {
			return profile.ErrInUse
		}
		return errors.Wrap(err, "deleting profile")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func profiles(rows []profileRow) []profile.Profile {
	res := make([]profile.Profile, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.profile())
	}
	return res
}
