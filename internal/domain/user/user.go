package user

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already taken")
)

// User is the account record. Storage bookkeeping (timestamps, revision)
// and the password hash never reach JSON.
type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"` // never expose hash in JSON
	Role              Role      `json:"role"`
	IsEmailVerified   bool      `json:"isEmailVerified"`
	EmployeeID        string    `json:"employeeId,omitempty"`
	Projects          []string  `json:"projects"`
	TechnicalRole     string    `json:"technicalRole,omitempty"`
	Designation       string    `json:"designation,omitempty"`
	SupportingAccount *string   `json:"supportingAccount,omitempty"`
	Revision          int       `json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// Filter mirrors the exact-match query filters accepted on user listings.
type Filter struct {
	Name *string
	Role *Role
}

// SortFields maps sortable JSON names to their canonical field name.
var SortFields = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "createdAt",
}

// NormalizeEmail trims and lower-cases an address so uniqueness checks are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type CreateUserRequest struct {
	Name              string   `json:"name" binding:"required,max=120"`
	Email             string   `json:"email" binding:"required,email"`
	Password          string   `json:"password" binding:"required,password"`
	Role              Role     `json:"role" binding:"required,oneof=user admin"`
	EmployeeID        string   `json:"employeeId" binding:"omitempty,max=64"`
	Projects          []string `json:"projects" binding:"omitempty,dive,required"`
	TechnicalRole     string   `json:"technicalRole" binding:"omitempty,max=120"`
	Designation       string   `json:"designation" binding:"omitempty,max=120"`
	SupportingAccount *string  `json:"supportingAccount" binding:"omitempty"`
}

// RegisterRequest is the self-service signup body. Accounts created this way get RoleUser.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,password"`
}

func (r RegisterRequest) ToCreate() CreateUserRequest {
	return CreateUserRequest{Name: r.Name, Email: r.Email, Password: r.Password, Role: RoleUser}
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Name              *string   `json:"name" binding:"omitempty,min=1,max=120"`
	Email             *string   `json:"email" binding:"omitempty,email"`
	Password          *string   `json:"password" binding:"omitempty,password"`
	EmployeeID        *string   `json:"employeeId" binding:"omitempty,max=64"`
	Projects          *[]string `json:"projects" binding:"omitempty"`
	TechnicalRole     *string   `json:"technicalRole" binding:"omitempty,max=120"`
	Designation       *string   `json:"designation" binding:"omitempty,max=120"`
	SupportingAccount *string   `json:"supportingAccount" binding:"omitempty"`
}

func (r UpdateUserRequest) IsEmpty() bool {
	return r.Name == nil && r.Email == nil && r.Password == nil && r.EmployeeID == nil &&
		r.Projects == nil && r.TechnicalRole == nil && r.Designation == nil && r.SupportingAccount == nil
}

// NewFromCreateRequest builds a user from the request; the caller supplies the hash.
func NewFromCreateRequest(req CreateUserRequest, passwordHash string, now time.Time) User {
	projects := req.Projects
	if projects == nil {
		projects = []string{}
	}

	return User{
		Name:              strings.TrimSpace(req.Name),
		Email:             NormalizeEmail(req.Email),
		PasswordHash:      passwordHash,
		Role:              req.Role,
		EmployeeID:        req.EmployeeID,
		Projects:          projects,
		TechnicalRole:     req.TechnicalRole,
		Designation:       req.Designation,
		SupportingAccount: req.SupportingAccount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Apply copies the set fields of an update onto u. Password handling is
// left to the caller because it needs hashing.
func (u *User) Apply(req UpdateUserRequest) {
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = NormalizeEmail(*req.Email)
	}
	if req.EmployeeID != nil {
		u.EmployeeID = *req.EmployeeID
	}
	if req.Projects != nil {
		u.Projects = *req.Projects
	}
	if req.TechnicalRole != nil {
		u.TechnicalRole = *req.TechnicalRole
	}
	if req.Designation != nil {
		u.Designation = *req.Designation
	}
	if req.SupportingAccount != nil {
		u.SupportingAccount = req.SupportingAccount
	}
}

func (u User) VersionKey() (string, int) { return u.ID, u.Revision }
