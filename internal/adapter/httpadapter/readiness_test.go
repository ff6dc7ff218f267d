package httpadapter_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/httpadapter"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllReady(t *testing.T) {
	noForecast := errors.New("pipeline has not published a forecast yet")
	dbDown := errors.New("database unreachable")

	tests := []struct {
		name     string
		checkers []sharedobs.ReadinessChecker
		wantErr  error
	}{
		{"all ready", []sharedobs.ReadinessChecker{&mockReadiness{}, &mockReadiness{}}, nil},
		{"database down", []sharedobs.ReadinessChecker{&mockReadiness{}, &mockReadiness{err: dbDown}}, dbDown},
		{"first failure wins", []sharedobs.ReadinessChecker{&mockReadiness{err: noForecast}, &mockReadiness{err: dbDown}}, noForecast},
		{"nil skipped", []sharedobs.ReadinessChecker{&mockReadiness{}, nil}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := httpadapter.AllReady(tt.checkers...).CheckReadiness(context.Background())
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadyz_DatabaseDown(t *testing.T) {
	ready := httpadapter.AllReady(&mockReadiness{}, &mockReadiness{err: errors.New("database unreachable")})
	srv := httpadapter.NewServer(":0", ready, slog.Default(), httpadapter.Options{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
