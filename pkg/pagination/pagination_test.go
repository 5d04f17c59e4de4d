package pagination

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestLimitParam(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"/", 0, false},
		{"/?limit=50", 50, false},
		{"/?limit=0", 0, true},
		{"/?limit=-3", 0, true},
		{"/?limit=ten", 0, true},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.query, nil), httptest.NewRecorder())
			got, err := LimitParam(c)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLimit) {
					t.Fatalf("expected ErrInvalidLimit, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		limit, def, max, want int
	}{
		{0, 200, 1000, 200},
		{-1, 200, 1000, 200},
		{50, 200, 1000, 50},
		{5000, 200, 1000, 1000},
		{5000, 500, 0, 5000},
	}
	for _, tt := range tests {
		if got := Clamp(tt.limit, tt.def, tt.max); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.limit, tt.def, tt.max, got, tt.want)
		}
	}
}
