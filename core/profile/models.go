package profile

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleProvider = "provider"
	RoleClient   = "client"

	// UnknownName is displayed for profiles that no longer exist.
	UnknownName = "Unknown User"
)

var (
	AllRoles = []string{RoleAdmin, RoleProvider, RoleClient}

	Roles = []Role{
		{Name: "Client", Value: RoleClient},
		{Name: "Provider", Value: RoleProvider},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func IsRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profile is the marketplace identity of an auth subject; ID is the subject.
type Profile struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CompanyName string    `json:"company_name"`
	AvatarURL   string    `json:"avatar_url"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (p Profile) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Profile) IsProvider() bool { return p.Role == RoleProvider }
func (p Profile) IsClient() bool   { return p.Role == RoleClient }

// DisplayName falls back from the full name to the company name, then to the email's local part.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(p.CompanyName); name != "" {
		return name
	}
	if i := strings.Index(p.Email, "@"); i > 0 {
		return p.Email[:i]
	}
	return UnknownName
}

func (p Profile) Person() core.Person {
	return core.Person{ID: p.ID, Name: p.DisplayName(), Email: p.Email}
}

func (p Profile) Participant() Participant {
	return Participant{ID: p.ID, Name: p.DisplayName(), Role: p.Role, AvatarURL: p.AvatarURL}
}

// Participant is the public view of a profile attached to bookings and messages.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Placeholder stands in for a profile that could not be loaded.
func Placeholder(id string) Participant {
	return Participant{ID: id, Name: UnknownName, Placeholder: true}
}

// NewProfile contains the token claims used to create a missing profile.
type NewProfile struct {
	ID       string `json:"id" validate:"required,uuid"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
	Role     string `json:"role"`
}

// Clean normalizes claims; admin can never be self-assigned, anything but provider is a client.
func (np *NewProfile) Clean() {
	np.ID = core.CleanString(np.ID, true /* lower */)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.FullName = core.CleanString(np.FullName)
	if core.CleanString(np.Role, true) != RoleProvider {
		np.Role = RoleClient
	} else {
		np.Role = RoleProvider
	}
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.Clean()
	return validate.Struct(np)
}

// UpdateProfile defines what information may be provided to modify an existing Profile.
// Role and IsActive may only be changed by admins.
type UpdateProfile struct {
	FullName    *string `json:"full_name" validate:"omitempty,notblank,max=120"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=160"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
	Role        *string `json:"role" validate:"omitempty,oneof=admin provider client"`
	IsActive    *bool   `json:"is_active"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.FullName, up.Phone, up.CompanyName, up.AvatarURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if up.Role != nil {
		*up.Role = core.CleanString(*up.Role, true /* lower */)
	}
	return validate.Struct(up)
}

func (up UpdateProfile) HasAdminFields() bool {
	return up.Role != nil || up.IsActive != nil
}

type QueryFilter struct {
	Search   string
	Roles    []string
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	roles := qf.Roles[:0]
	for _, r := range qf.Roles {
		if r = core.CleanString(r, true); r != "" {
			roles = append(roles, r)
		}
	}
	qf.Roles = roles
}

// OrderingFields are the fields profiles can be ordered by.
var OrderingFields = []string{"created_at", "updated_at", "full_name", "email", "role"}
