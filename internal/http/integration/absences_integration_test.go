package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

type absenceBody struct {
	ID     string          `json:"id"`
	User   json.RawMessage `json:"user"`
	Date   string          `json:"date"`
	Reason string          `json:"reason"`
}

func (a absenceBody) userID(t *testing.T) string {
	t.Helper()
	var id string
	if err := json.Unmarshal(a.User, &id); err != nil {
		t.Fatalf("user is not an id: %s", a.User)
	}
	return id
}

type absencePage struct {
	Results      []absenceBody `json:"results"`
	TotalResults int64         `json:"totalResults"`
}

func (a *testApp) createAbsence(t *testing.T, token, userID, date, reason string) absenceBody {
	t.Helper()

	w := a.do(t, http.MethodPost, "/v1/absences", token, map[string]string{
		"user": userID, "date": date, "reason": reason,
	})
	expectStatus(t, w, http.StatusCreated)

	var out absenceBody
	mustReadJSON(t, w, &out)
	return out
}

func TestAbsencesIntegration_OwnerFlow(t *testing.T) {
	app := newTestApp(t)
	sam := app.register(t, "Sam", "sam@example.com", "password123")
	token := sam.Tokens.Access.Token

	a := app.createAbsence(t, token, sam.User.ID, "2021-08-21", "sick")
	if a.userID(t) != sam.User.ID || a.Reason != "sick" {
		t.Fatalf("unexpected absence %+v", a)
	}

	w := app.do(t, http.MethodGet, "/v1/absences/"+a.ID, token, nil)
	expectStatus(t, w, http.StatusOK)

	w = app.do(t, http.MethodPatch, "/v1/absences/"+a.ID, token, map[string]string{"reason": "doctor"})
	expectStatus(t, w, http.StatusOK)

	var updated absenceBody
	mustReadJSON(t, w, &updated)
	if updated.Reason != "doctor" {
		t.Fatalf("reason not updated: %+v", updated)
	}

	w = app.do(t, http.MethodPatch, "/v1/absences/"+a.ID, token, map[string]string{})
	expectStatus(t, w, http.StatusBadRequest)

	w = app.do(t, http.MethodDelete, "/v1/absences/"+a.ID, token, nil)
	expectStatus(t, w, http.StatusNoContent)

	w = app.do(t, http.MethodGet, "/v1/absences/"+a.ID, token, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAbsencesIntegration_OwnershipRules(t *testing.T) {
	app := newTestApp(t)
	admin := app.adminToken(t)
	sam := app.register(t, "Sam", "sam@example.com", "password123")
	kim := app.register(t, "Kim", "kim@example.com", "password123")

	kimAbsence := app.createAbsence(t, kim.Tokens.Access.Token, kim.User.ID, "2021-09-01", "holiday")

	// sam cannot file, read, change or delete kim's entries
	w := app.do(t, http.MethodPost, "/v1/absences", sam.Tokens.Access.Token, map[string]string{
		"user": kim.User.ID, "date": "2021-09-02", "reason": "x",
	})
	expectStatus(t, w, http.StatusForbidden)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = app.do(t, method, "/v1/absences/"+kimAbsence.ID, sam.Tokens.Access.Token, nil)
		expectStatus(t, w, http.StatusForbidden)
	}

	w = app.do(t, http.MethodPatch, "/v1/absences/"+kimAbsence.ID, sam.Tokens.Access.Token, map[string]string{"reason": "x"})
	expectStatus(t, w, http.StatusForbidden)

	// admin can act for anyone
	app.createAbsence(t, admin, sam.User.ID, "2021-09-03", "training")

	w = app.do(t, http.MethodGet, "/v1/absences/"+kimAbsence.ID, admin, nil)
	expectStatus(t, w, http.StatusOK)

	// unknown owner
	w = app.do(t, http.MethodPost, "/v1/absences", admin, map[string]string{
		"user": "6650f1c2a1b2c3d4e5f60718", "date": "2021-09-02", "reason": "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400 for an unknown user, body=%s", w.Code, w.Body.String())
	}
}

func TestAbsencesIntegration_ListScopingAndFilters(t *testing.T) {
	app := newTestApp(t)
	admin := app.adminToken(t)
	sam := app.register(t, "Sam", "sam@example.com", "password123")
	kim := app.register(t, "Kim", "kim@example.com", "password123")

	app.createAbsence(t, admin, sam.User.ID, "2021-08-01", "a")
	app.createAbsence(t, admin, sam.User.ID, "2021-08-15", "b")
	app.createAbsence(t, admin, kim.User.ID, "2021-08-20", "c")

	var page absencePage

	// a regular user only sees their own entries
	w := app.do(t, http.MethodGet, "/v1/absences", sam.Tokens.Access.Token, nil)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &page)
	if page.TotalResults != 2 {
		t.Fatalf("sam sees %d entries, want 2", page.TotalResults)
	}

	w = app.do(t, http.MethodGet, "/v1/absences?user="+kim.User.ID, sam.Tokens.Access.Token, nil)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &page)
	if page.TotalResults != 0 || len(page.Results) != 0 {
		t.Fatalf("filtering on another user should be empty, got %+v", page)
	}

	// admin sees everything and can filter
	w = app.do(t, http.MethodGet, "/v1/absences", admin, nil)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &page)
	if page.TotalResults != 3 {
		t.Fatalf("admin sees %d entries, want 3", page.TotalResults)
	}

	w = app.do(t, http.MethodGet, "/v1/absences?name=Kim", admin, nil)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &page)
	if page.TotalResults != 1 || page.Results[0].userID(t) != kim.User.ID {
		t.Fatalf("name filter got %+v", page)
	}

	w = app.do(t, http.MethodGet, "/v1/absences?from=2021-08-10&to=2021-08-31&sortBy=date:desc", admin, nil)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &page)
	if page.TotalResults != 2 || page.Results[0].Reason != "c" || page.Results[1].Reason != "b" {
		t.Fatalf("date range got %+v", page)
	}

	w = app.do(t, http.MethodGet, "/v1/absences?from=2021-09-01&to=2021-08-01", admin, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = app.do(t, http.MethodGet, "/v1/absences?populate=manager", admin, nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestAbsencesIntegration_PopulateUser(t *testing.T) {
	app := newTestApp(t)
	sam := app.register(t, "Sam", "sam@example.com", "password123")
	app.createAbsence(t, sam.Tokens.Access.Token, sam.User.ID, "2021-08-21", "sick")

	w := app.do(t, http.MethodGet, "/v1/absences?populate=user", sam.Tokens.Access.Token, nil)
	expectStatus(t, w, http.StatusOK)

	var page absencePage
	mustReadJSON(t, w, &page)
	if len(page.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(page.Results))
	}

	var owner userBody
	if err := json.Unmarshal(page.Results[0].User, &owner); err != nil {
		t.Fatalf("user should be populated: %s", page.Results[0].User)
	}
	if owner.ID != sam.User.ID || owner.Email != "sam@example.com" {
		t.Fatalf("unexpected populated owner %+v", owner)
	}
}

func TestAbsencesIntegration_OversizedPaging(t *testing.T) {
	app := newTestApp(t)
	sam := app.register(t, "Sam", "sam@example.com", "password123")
	token := sam.Tokens.Access.Token
	app.createAbsence(t, token, sam.User.ID, "2021-08-21", "sick")

	w := app.do(t, http.MethodGet, "/v1/absences?limit=1000000000", token, nil)
	expectStatus(t, w, http.StatusOK)

	var page struct {
		Limit        int   `json:"limit"`
		TotalResults int64 `json:"totalResults"`
	}
	mustReadJSON(t, w, &page)
	if page.Limit != 100 || page.TotalResults != 1 {
		t.Fatalf("expected the limit to be capped, got %+v", page)
	}

	w = app.do(t, http.MethodGet, "/v1/absences?limit=1000000000&page=9999999999", token, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = app.do(t, http.MethodGet, "/v1/users?limit=1000000000&page=9999999999", app.adminToken(t), nil)
	expectStatus(t, w, http.StatusBadRequest)
}
