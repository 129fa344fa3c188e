package absence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/geocoder89/absencehub/internal/domain/user"
)

func TestDate_UnmarshalDayAndTimestamp(t *testing.T) {
	var req CreateAbsenceRequest
	if err := json.Unmarshal([]byte(`{"user":"u1","date":"2021-08-21","reason":"Sick leave"}`), &req); err != nil {
		t.Fatalf("unmarshal day: %v", err)
	}
	want := time.Date(2021, 8, 21, 0, 0, 0, 0, time.UTC)
	if !req.Date.Time().Equal(want) {
		t.Fatalf("got %s, want %s", req.Date.Time(), want)
	}

	if err := json.Unmarshal([]byte(`{"date":"2021-08-21T09:30:00+02:00"}`), &req); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if req.Date.Time().Hour() != 7 {
		t.Fatalf("expected UTC conversion, got %s", req.Date.Time())
	}
}

func TestDate_RejectsGarbage(t *testing.T) {
	var req CreateAbsenceRequest
	if err := json.Unmarshal([]byte(`{"date":"next tuesday"}`), &req); err == nil {
		t.Fatalf("expected an error for an unparseable date")
	}
}

func TestAbsenceJSON(t *testing.T) {
	a := NewFromCreateRequest(CreateAbsenceRequest{
		UserID: "u1",
		Date:   func() *Date { d := Date(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); return &d }(),
		Reason: "  Dentist ",
	}, time.Now())
	a.ID = "a1"

	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	_ = json.Unmarshal(b, &m)

	if m["id"] != "a1" || m["user"] != "u1" || m["reason"] != "Dentist" {
		t.Fatalf("unexpected json: %s", b)
	}
	if _, ok := m["createdAt"]; ok {
		t.Fatalf("timestamps must be stripped: %s", b)
	}
}

func TestAbsenceJSON_PopulatedOwner(t *testing.T) {
	a := Absence{ID: "a1", UserID: "u1", Reason: "Leave"}
	a.Owner = &user.User{ID: "u1", Name: "Ada", PasswordHash: "secret"}

	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	_ = json.Unmarshal(b, &m)

	owner, ok := m["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected populated user object, got %s", b)
	}
	if owner["name"] != "Ada" {
		t.Fatalf("unexpected owner: %v", owner)
	}
	if _, ok := owner["password"]; ok {
		t.Fatalf("populated owner leaked password: %s", b)
	}
}
