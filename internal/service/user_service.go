package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/geocoder89/absencehub/internal/security"
)

var persistedTokenTypes = []token.Type{token.TypeRefresh, token.TypeResetPassword, token.TypeVerifyEmail}

type UserService struct {
	users  UserRepository
	tokens TokenRepository
	tx     Transactor
	hasher *security.Hasher
	now    func() time.Time
}

func NewUserService(users UserRepository, tokens TokenRepository, tx Transactor, hasher *security.Hasher) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		tx:     tx,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func errEmailTaken() *apperr.Error { return apperr.BadRequest("Email already taken") }

func errUserNotFound() *apperr.Error { return apperr.NotFound("User not found") }

func (s *UserService) CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	email := user.NormalizeEmail(req.Email)

	taken, err := s.users.IsEmailTaken(ctx, email, "")
	if err != nil {
		return user.User{}, err
	}
	if taken {
		return user.User{}, errEmailTaken()
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.NewFromCreateRequest(req, hash, s.now())
	if err := s.users.Create(ctx, &u); err != nil {
		// lost a race with a concurrent signup on the same email
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, errEmailTaken()
		}
		return user.User{}, err
	}

	return u, nil
}

func (s *UserService) QueryUsers(ctx context.Context, f user.Filter, opts pagination.Options) (pagination.Result[user.User], error) {
	q, err := pagination.Normalize(opts, user.SortFields, nil)
	if err != nil {
		return pagination.Result[user.User]{}, err
	}

	return pagination.Paginate(ctx, q,
		func(ctx context.Context) (int64, error) { return s.users.Count(ctx, f) },
		func(ctx context.Context, q pagination.Query) ([]user.User, error) { return s.users.List(ctx, f, q) },
	)
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, errUserNotFound()
	}
	return u, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, errUserNotFound()
	}
	return u, err
}

// UpdateUserByID applies a partial update. A supplied password is re-hashed.
func (s *UserService) UpdateUserByID(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if req.Email != nil {
		taken, err := s.users.IsEmailTaken(ctx, user.NormalizeEmail(*req.Email), id)
		if err != nil {
			return user.User{}, err
		}
		if taken {
			return user.User{}, errEmailTaken()
		}
	}

	u.Apply(req)

	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return user.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.save(ctx, &u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// SetPassword replaces the stored hash. Used by the reset flow.
func (s *UserService) SetPassword(ctx context.Context, u *user.User, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	return s.save(ctx, u)
}

func (s *UserService) MarkEmailVerified(ctx context.Context, u *user.User) error {
	u.IsEmailVerified = true
	return s.save(ctx, u)
}

// DeleteUserByID removes the account and every token it still holds.
func (s *UserService) DeleteUserByID(ctx context.Context, id string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Delete(ctx, id); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return errUserNotFound()
			}
			return err
		}

		for _, typ := range persistedTokenTypes {
			if _, err := s.tokens.DeleteAllOfType(ctx, id, typ); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureAdmin creates an admin account unless the email is already registered.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	if name == "" {
		name = "Admin"
	}

	taken, err := s.users.IsEmailTaken(ctx, email, "")
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	_, err = s.CreateUser(ctx, user.CreateUserRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     user.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) save(ctx context.Context, u *user.User) error {
	u.UpdatedAt = s.now()
	err := s.users.Update(ctx, u)
	switch {
	case errors.Is(err, user.ErrNotFound):
		return errUserNotFound()
	case errors.Is(err, user.ErrEmailTaken):
		return errEmailTaken()
	default:
		return err
	}
}

// ImportRecord is one row of the staff roster export.
type ImportRecord struct {
	EmployeeID        any    `json:"EMP ID"`
	Name              string `json:"NAME"`
	Email             string `json:"EMAIL"`
	SupportingAccount string `json:"Supporting Account"`
	Projects          string `json:"Project"`
	TechnicalRole     string `json:"Role"`
	Designation       string `json:"Designation"`
}

type ImportReport struct {
	Created int
	Skipped []ImportSkip
}

type ImportSkip struct {
	Row    int
	Name   string
	Reason string
}

// ImportUsers creates a user per roster row with a random password. Rows
// without an email, or whose email is taken, are skipped and reported.
func (s *UserService) ImportUsers(ctx context.Context, records []ImportRecord) (ImportReport, error) {
	var report ImportReport

	for i, rec := range records {
		row := i + 1
		email := user.NormalizeEmail(rec.Email)
		if email == "" {
			report.Skipped = append(report.Skipped, ImportSkip{Row: row, Name: rec.Name, Reason: "missing email"})
			continue
		}

		password, err := security.RandomPassword()
		if err != nil {
			return report, err
		}

		req := user.CreateUserRequest{
			Name:          strings.TrimSpace(rec.Name),
			Email:         email,
			Password:      password,
			Role:          user.RoleUser,
			EmployeeID:    employeeID(rec.EmployeeID),
			Projects:      splitProjects(rec.Projects),
			TechnicalRole: strings.TrimSpace(rec.TechnicalRole),
			Designation:   strings.TrimSpace(rec.Designation),
		}
		if acct := strings.TrimSpace(rec.SupportingAccount); acct != "" {
			req.SupportingAccount = &acct
		}

		if _, err := s.CreateUser(ctx, req); err != nil {
			if apperr.Is(err, http.StatusBadRequest) {
				report.Skipped = append(report.Skipped, ImportSkip{Row: row, Name: rec.Name, Reason: "email already taken"})
				continue
			}
			return report, fmt.Errorf("row %d: %w", row, err)
		}

		report.Created++
		slog.Debug("user imported", "row", row, "email", email)
	}

	return report, nil
}

// employeeID accepts the roster's numeric or string ids.
func employeeID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

func splitProjects(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
