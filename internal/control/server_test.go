package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/worker"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Start(ctx context.Context) error { return m.Called().Error(0) }
func (m *mockRunner) Stop() bool                      { return m.Called().Bool(0) }
func (m *mockRunner) Snapshot() worker.Snapshot {
	return m.Called().Get(0).(worker.Snapshot)
}

type mockSummaries struct{ mock.Mock }

func (m *mockSummaries) Summary(ctx context.Context, session string) (ledger.Summary, error) {
	args := m.Called(session)
	return args.Get(0).(ledger.Summary), args.Error(1)
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	r := &mockRunner{}
	r.On("Snapshot").Return(worker.Snapshot{Running: true, Mode: config.ModeRolling, Status: "price 2500", Cycles: 4})
	h := New(context.Background(), r, nil).Handler()

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got worker.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Running)
	assert.Equal(t, config.ModeRolling, got.Mode)
	assert.Equal(t, 4, got.Cycles)
}

func TestStart(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"started", nil, http.StatusAccepted},
		{"already running", worker.ErrAlreadyRunning, http.StatusConflict},
		{"factory failure", errors.New("no templates"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mockRunner{}
			r.On("Start").Return(tt.err)
			r.On("Snapshot").Return(worker.Snapshot{Running: true}).Maybe()

			rec := do(t, New(context.Background(), r, nil).Handler(), http.MethodPost, "/start")
			assert.Equal(t, tt.code, rec.Code)
			r.AssertCalled(t, "Start")
		})
	}
}

func TestStop(t *testing.T) {
	r := &mockRunner{}
	r.On("Stop").Return(true).Once()
	r.On("Stop").Return(false).Once()
	r.On("Snapshot").Return(worker.Snapshot{Running: true, Stopping: true})
	h := New(context.Background(), r, nil).Handler()

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/stop").Code)
	rec := do(t, h, http.MethodPost, "/stop")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no session is running")
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(context.Background(), &mockRunner{}, nil).Handler()
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/stop").Code)
}

func TestSummary(t *testing.T) {
	s := &mockSummaries{}
	s.On("Summary", "abc").Return(ledger.Summary{Session: "abc", Sold: 10, Profit: 1500, AvgBuyPrice: decimal.RequireFromString("863.2")}, nil)
	s.On("Summary", "nope").Return(ledger.Summary{}, ledger.ErrUnknownSession)
	h := New(context.Background(), &mockRunner{}, s).Handler()

	rec := do(t, h, http.MethodGet, "/sessions/abc/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var got ledger.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 1500, got.Profit)
	assert.True(t, got.AvgBuyPrice.Equal(decimal.RequireFromString("863.2")))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/nope/summary").Code)
}

func TestSummaryWithoutLedger(t *testing.T) {
	h := New(context.Background(), &mockRunner{}, nil).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/abc/summary").Code)
}
