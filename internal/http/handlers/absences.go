package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/domain/absence"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/http/middlewares"
	"github.com/geocoder89/absencehub/internal/pagination"
	"github.com/geocoder89/absencehub/internal/service"
	"github.com/gin-gonic/gin"
)

type AbsenceManager interface {
	Create(ctx context.Context, caller user.User, req absence.CreateAbsenceRequest) (absence.Absence, error)
	Query(ctx context.Context, caller user.User, aq service.AbsenceQuery, opts pagination.Options) (pagination.Result[absence.Absence], error)
	Get(ctx context.Context, caller user.User, id string) (absence.Absence, error)
	Update(ctx context.Context, caller user.User, id string, req absence.UpdateAbsenceRequest) (absence.Absence, error)
	Delete(ctx context.Context, caller user.User, id string) error
}

type AbsencesHandler struct {
	absences AbsenceManager
}

func NewAbsencesHandler(absences AbsenceManager) *AbsencesHandler {
	return &AbsencesHandler{absences: absences}
}

// ListAbsencesQuery is the query string of GET /v1/absences. From and To
// take a calendar day or an RFC 3339 timestamp.
type ListAbsencesQuery struct {
	User string `form:"user" binding:"omitempty,objectid"`
	Name string `form:"name"`
	Role string `form:"role" binding:"omitempty,oneof=user admin"`
	From string `form:"from"`
	To   string `form:"to"`
	pagination.Options
}

func (q ListAbsencesQuery) toQuery() (service.AbsenceQuery, error) {
	var aq service.AbsenceQuery

	if q.User != "" {
		id := q.User
		aq.UserID = &id
	}
	if q.Name != "" {
		name := q.Name
		aq.Name = &name
	}
	if q.Role != "" {
		role := user.Role(q.Role)
		aq.Role = &role
	}

	var err error
	if aq.From, err = parseDay(q.From, "from"); err != nil {
		return aq, err
	}
	if aq.To, err = parseDay(q.To, "to"); err != nil {
		return aq, err
	}

	if aq.From != nil && aq.To != nil && aq.To.Before(*aq.From) {
		return aq, apperr.BadRequest("to must not be before from")
	}

	return aq, nil
}

func parseDay(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	var d absence.Date
	if err := d.UnmarshalJSON([]byte(raw)); err != nil {
		return nil, apperr.BadRequest(name + " must be a date (YYYY-MM-DD)").WithCause(err)
	}

	t := d.Time()
	return &t, nil
}

func caller(ctx *gin.Context) (user.User, bool) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondErr(ctx, apperr.Unauthorized("Please authenticate"))
	}
	return u, ok
}

func (h *AbsencesHandler) CreateAbsence(ctx *gin.Context) {
	u, ok := caller(ctx)
	if !ok {
		return
	}

	var req absence.CreateAbsenceRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	a, err := h.absences.Create(cctx, u, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, a)
}

func (h *AbsencesHandler) ListAbsences(ctx *gin.Context) {
	u, ok := caller(ctx)
	if !ok {
		return
	}

	var q ListAbsencesQuery
	if !BindQuery(ctx, &q) {
		return
	}

	aq, err := q.toQuery()
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := h.absences.Query(cctx, u, aq, q.Options)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *AbsencesHandler) GetAbsence(ctx *gin.Context) {
	u, ok := caller(ctx)
	if !ok {
		return
	}

	id, ok := requireID(ctx, "absenceId")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	a, err := h.absences.Get(cctx, u, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, a)
}

func (h *AbsencesHandler) UpdateAbsence(ctx *gin.Context) {
	u, ok := caller(ctx)
	if !ok {
		return
	}

	id, ok := requireID(ctx, "absenceId")
	if !ok {
		return
	}

	var req absence.UpdateAbsenceRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.IsEmpty() {
		RespondErr(ctx, apperr.BadRequest("At least one field must be provided"))
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	a, err := h.absences.Update(cctx, u, id, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, a)
}

func (h *AbsencesHandler) DeleteAbsence(ctx *gin.Context) {
	u, ok := caller(ctx)
	if !ok {
		return
	}

	id, ok := requireID(ctx, "absenceId")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, requestTimeout)
	defer cancel()

	if err := h.absences.Delete(cctx, u, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
