package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo, *fixture) {
	f := newFixture()
	return NewHandler(f.svc), echo.New(), f
}

func TestHandler_CreateFollowup(t *testing.T) {
	h, e, f := newTestHandler()
	patientID := f.addPatient(34, "+15550100")
	consultID := f.addConsultation(patientID)

	body := fmt.Sprintf(`{"patient_id":%q,"consultation_id":%q}`, patientID, consultID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/followups", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var fu Followup
	json.Unmarshal(rec.Body.Bytes(), &fu)
	if len(fu.CheckinSchedule) != 6 {
		t.Errorf("expected 6 check-in slots in the response, got %d", len(fu.CheckinSchedule))
	}
	if fu.Status != StatusActive {
		t.Errorf("expected active status, got %q", fu.Status)
	}
}

func TestHandler_CreateFollowup_Conflict(t *testing.T) {
	h, e, f := newTestHandler()
	patientID := f.addPatient(34, "")
	consultID := f.addConsultation(patientID)

	if _, err := f.svc.Create(context.Background(), patientID, consultID); err != nil {
		t.Fatalf("seed Create: %v", err)
	}

	body := fmt.Sprintf(`{"patient_id":%q,"consultation_id":%q}`, patientID, consultID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/followups", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409 for a second active followup, got %v", err)
	}
}

func TestHandler_Reply_NoActiveFollowup(t *testing.T) {
	h, e, f := newTestHandler()
	patientID := f.addPatient(34, "")

	body := fmt.Sprintf(`{"patient_id":%q,"message":"hello"}`, patientID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/followups/reply", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Reply(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 without an active followup, got %v", err)
	}
}

func TestHandler_Reply_MissingFields(t *testing.T) {
	h, e, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/followups/reply", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Reply(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty reply, got %v", err)
	}
}

func TestHandler_GetActiveByPatient(t *testing.T) {
	h, e, f := newTestHandler()
	patientID := f.addPatient(34, "")
	consultID := f.addConsultation(patientID)

	seeded, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("seed Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := h.GetActiveByPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var fu Followup
	json.Unmarshal(rec.Body.Bytes(), &fu)
	if fu.ID != seeded.ID {
		t.Errorf("expected followup %s, got %s", seeded.ID, fu.ID)
	}
}

func TestHandler_Reactivate_FromActiveConflicts(t *testing.T) {
	h, e, f := newTestHandler()
	patientID := f.addPatient(34, "")
	consultID := f.addConsultation(patientID)

	seeded, err := f.svc.Create(context.Background(), patientID, consultID)
	if err != nil {
		t.Fatalf("seed Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.String())

	err = h.Reactivate(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409 reactivating an active followup, got %v", err)
	}
}
