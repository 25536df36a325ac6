package directory

import (
	"fmt"
	"strings"
	"time"
)

// Domain identifies which side of the platform an organization serves.
// Values are bit flags so a user's participation can be folded into one mask.
type Domain uint8

const (
	DomainManagement Domain = 1 << iota
	DomainOwner
	DomainTenant
	DomainService
)

// Domains lists every defined domain in display order.
var Domains = []Domain{DomainManagement, DomainOwner, DomainTenant, DomainService}

func (d Domain) String() string {
	switch d {
	case DomainManagement:
		return "management"
	case DomainOwner:
		return "owner"
	case DomainTenant:
		return "tenant"
	case DomainService:
		return "service"
	default:
		return fmt.Sprintf("domain(%d)", uint8(d))
	}
}

// Valid reports whether d is exactly one defined domain.
func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDomain accepts the lower-case names produced by String.
func ParseDomain(s string) (Domain, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, d := range Domains {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown domain %q", ErrInvalidInput, s)
}

const (
	RoleAdmin         = "Admin"
	RoleAdministrator = "Administrator"
	RoleUser          = "User"
)

// Organization is a tenant-scoping business entity.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LegalName string    `json:"legal_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Domain    Domain    `json:"domain"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership grants one identity a role within one organization.
type Membership struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	IdentityUserID string     `json:"identity_user_id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Domain         Domain     `json:"domain"`
	Active         bool       `json:"active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OrganizationUpdate carries optional field changes.
type OrganizationUpdate struct {
	Name      *string
	LegalName *string
	Email     *string
	Phone     *string
	Address   *string
	Active    *bool
}

// MembershipUpdate carries optional field changes.
type MembershipUpdate struct {
	Role        *string
	FullName    *string
	Active      *bool
	LastLoginAt *time.Time
}

// MarshalText renders the domain name in JSON payloads.
func (d Domain) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: invalid domain %d", ErrInvalidInput, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses a domain name.
func (d *Domain) UnmarshalText(b []byte) error {
	parsed, err := ParseDomain(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
