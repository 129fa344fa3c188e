package absence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/absencehub/internal/domain/user"
)

var ErrNotFound = errors.New("absence not found")

type Absence struct {
	ID     string    `json:"id"`
	UserID string    `json:"user"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
	// Owner is set only when the listing asked to populate "user".
	Owner     *user.User `json:"-"`
	Revision  int        `json:"-"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

// MarshalJSON renders the owner in place of its id once populated.
func (a Absence) MarshalJSON() ([]byte, error) {
	type view struct {
		ID     string    `json:"id"`
		User   any       `json:"user"`
		Date   time.Time `json:"date"`
		Reason string    `json:"reason"`
	}

	v := view{ID: a.ID, User: a.UserID, Date: a.Date, Reason: a.Reason}
	if a.Owner != nil {
		v.User = a.Owner
	}
	return json.Marshal(v)
}

// Filter narrows absence listings. UserIDs, when Restrict is set, limits
// results to those owners (an empty set matches nothing).
type Filter struct {
	UserID   *string
	UserIDs  []string
	Restrict bool
	From     *time.Time
	To       *time.Time
}

var SortFields = map[string]string{
	"date":      "date",
	"reason":    "reason",
	"createdAt": "createdAt",
}

// Relations lists the populate paths an absence listing can expand.
var Relations = map[string]map[string]struct{}{
	"user": {},
}

// Date accepts a calendar day ("2021-08-21") or an RFC 3339 timestamp.
type Date time.Time

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		return nil
	}

	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		*d = Date(t)
		return nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD or RFC 3339: %w", err)
	}
	*d = Date(t)
	return nil
}

func (d Date) Time() time.Time { return time.Time(d).UTC() }

type CreateAbsenceRequest struct {
	UserID string `json:"user" binding:"required,objectid"`
	Date   *Date  `json:"date" binding:"required"`
	Reason string `json:"reason" binding:"required,max=500"`
}

type UpdateAbsenceRequest struct {
	Date   *Date   `json:"date" binding:"omitempty"`
	Reason *string `json:"reason" binding:"omitempty,min=1,max=500"`
}

func (r UpdateAbsenceRequest) IsEmpty() bool {
	return r.Date == nil && r.Reason == nil
}

func NewFromCreateRequest(req CreateAbsenceRequest, now time.Time) Absence {
	return Absence{
		UserID:    req.UserID,
		Date:      req.Date.Time(),
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *Absence) Apply(req UpdateAbsenceRequest) {
	if req.Date != nil {
		a.Date = req.Date.Time()
	}
	if req.Reason != nil {
		a.Reason = strings.TrimSpace(*req.Reason)
	}
}

func (a Absence) VersionKey() (string, int) { return a.ID, a.Revision }
