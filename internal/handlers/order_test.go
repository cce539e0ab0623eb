package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func yearParamFor(t *testing.T, rawQuery string) (int, bool, int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/getyearlyorders?"+rawQuery, nil)

	year, ok := yearParam(c)
	return year, ok, w.Code
}

func TestYearParamDefaultsToCurrentYear(t *testing.T) {
	year, ok, _ := yearParamFor(t, "")
	if !ok {
		t.Fatal("expected default year to be accepted")
	}
	if year != time.Now().UTC().Year() {
		t.Errorf("expected current year, got %d", year)
	}
}

func TestYearParamExplicit(t *testing.T) {
	year, ok, _ := yearParamFor(t, "year=2024")
	if !ok {
		t.Fatal("expected year=2024 to be accepted")
	}
	if year != 2024 {
		t.Errorf("expected 2024, got %d", year)
	}
}

func TestYearParamRejectsGarbage(t *testing.T) {
	for _, q := range []string{"year=abc", "year=1800", "year=-3"} {
		_, ok, code := yearParamFor(t, q)
		if ok {
			t.Errorf("expected %q to be rejected", q)
		}
		if code != http.StatusBadRequest {
			t.Errorf("expected 400 for %q, got %d", q, code)
		}
	}
}
