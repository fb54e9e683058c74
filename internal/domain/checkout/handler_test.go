package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/domain/cart"
	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/internal/platform/storage/storagetest"
)

func request(sid string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(cart.SessionHeader, sid)
	return req
}

func TestHandler_Checkout(t *testing.T) {
	co, _, sessions, _ := newTestCoordinator(storage.NewMemory())
	fill(sessions, "s1", paracetamol)
	h := NewHandler(co, zerolog.Nop())
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.Checkout(e.NewContext(request("s1"), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var res Result
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Bill == nil || res.Bill.ID != "INV-005" {
		t.Errorf("unexpected result %+v", res)
	}

	rec = httptest.NewRecorder()
	if err := h.GetNotice(e.NewContext(request("s1"), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected notice 200, got %d", rec.Code)
	}
}

func TestHandler_Checkout_EmptyCart(t *testing.T) {
	co, _, _, _ := newTestCoordinator(storage.NewMemory())
	h := NewHandler(co, zerolog.Nop())
	rec := httptest.NewRecorder()

	if err := h.Checkout(echo.New().NewContext(request("s1"), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_Checkout_StorageFailure(t *testing.T) {
	co, _, sessions, _ := newTestCoordinator(storagetest.NewFailing())
	fill(sessions, "s1", paracetamol)
	h := NewHandler(co, zerolog.Nop())

	err := h.Checkout(echo.New().NewContext(request("s1"), httptest.NewRecorder()))
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}
