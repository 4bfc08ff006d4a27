package model

import (
	"fmt"
	"time"
)

// Kind distinguishes the two principal tables. Each kind has its own
// public id sequence.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindUser, KindAdmin:
		return Kind(value), nil
	case "":
		return KindUser, nil
	default:
		return "", fmt.Errorf("unknown principal kind %q", value)
	}
}

// CounterName is the sequence namespace the kind mints public ids from.
func (k Kind) CounterName() string {
	if k == KindAdmin {
		return "adminIdCounter"
	}
	return "userIdCounter"
}

type Status string

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusActive, StatusInactive, StatusSuspended:
		return Status(value), nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

const (
	RoleAdmin      = 0
	RoleSuperAdmin = 1
)

// Principal is a user or admin credential record.
type Principal struct {
	ID             int64
	Kind           Kind
	PublicID       string
	Email          string
	Phone          string
	Nickname       string
	PasswordHash   string
	Status         Status
	Role           int
	FailedAttempts int
	RiskLevel      int
	LockUntil      *time.Time
	LastLoginTime  *time.Time
	LastLoginIP    string
	RegisterIP     string
	IsDeleted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPrincipal is the input for creating a principal. PublicID is minted
// by the store.
type NewPrincipal struct {
	Email        string
	Phone        string
	Nickname     string
	PasswordHash string
	Role         int
	RegisterIP   string
}

// PrincipalView is what clients get to see of a principal.
type PrincipalView struct {
	ID            int64      `json:"id"`
	Kind          Kind       `json:"kind"`
	PublicID      string     `json:"publicId"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Nickname      string     `json:"nickname"`
	Status        Status     `json:"status"`
	Role          *int       `json:"role,omitempty"`
	LastLoginTime *time.Time `json:"lastLoginTime,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (p *Principal) View() PrincipalView {
	view := PrincipalView{
		ID:            p.ID,
		Kind:          p.Kind,
		PublicID:      p.PublicID,
		Email:         p.Email,
		Phone:         p.Phone,
		Nickname:      p.Nickname,
		Status:        p.Status,
		LastLoginTime: p.LastLoginTime,
		CreatedAt:     p.CreatedAt,
	}
	if p.Kind == KindAdmin {
		role := p.Role
		view.Role = &role
	}
	return view
}

// AdminLog records an administrative action.
type AdminLog struct {
	ID          int64
	AdminID     int64
	PublicID    string
	Type        string
	Description string
	Detail      map[string]any
	IP          string
	CreatedAt   time.Time
}

const (
	AdminLogLogin       = "LOGIN"
	AdminLogLogout      = "LOGOUT"
	AdminLogCreateAdmin = "CREATE_ADMIN"
	AdminLogUnlock      = "OPERATE_NORMAL_USER"
	AdminLogSetStatus   = "OPERATE_STATUS"
)
