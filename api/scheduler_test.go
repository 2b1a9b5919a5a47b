package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/gold"
)

type fakeVerifier struct {
	mu     sync.Mutex
	calls  int
	report gold.ConsistencyReport
	err    error
}

func (f *fakeVerifier) VerifyConsistency(ctx context.Context) (gold.ConsistencyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.report, f.err
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestScheduler_RunNowKeepsLastReport(t *testing.T) {
	v := &fakeVerifier{report: gold.ConsistencyReport{
		Banks: []gold.BankDrift{{AccountID: "bank-main", Stored: decimal.NewFromInt(10), Replayed: decimal.Zero}},
	}}
	cs := NewConsistencyScheduler(v, quietLogger(), time.Hour)
	assert.Nil(t, cs.LastReport())

	report, err := cs.RunNow()
	require.NoError(t, err)
	assert.False(t, report.OK())

	last := cs.LastReport()
	require.NotNil(t, last)
	require.Len(t, last.Banks, 1)
	assert.Equal(t, "bank-main", last.Banks[0].AccountID)
}

func TestScheduler_FailedRunKeepsPreviousReport(t *testing.T) {
	v := &fakeVerifier{}
	cs := NewConsistencyScheduler(v, quietLogger(), time.Hour)
	_, err := cs.RunNow()
	require.NoError(t, err)

	v.err = errors.New("database is locked")
	_, err = cs.RunNow()
	assert.Error(t, err)
	require.NotNil(t, cs.LastReport())
	assert.True(t, cs.LastReport().OK())
}

func TestScheduler_ZeroIntervalDisabled(t *testing.T) {
	v := &fakeVerifier{}
	cs := NewConsistencyScheduler(v, quietLogger(), 0)
	cs.Start()
	cs.Stop()
	assert.Zero(t, v.Calls())
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	v := &fakeVerifier{}
	cs := NewConsistencyScheduler(v, quietLogger(), time.Hour)
	cs.Start()
	assert.Eventually(t, func() bool { return v.Calls() >= 1 }, time.Second, 10*time.Millisecond)
	cs.Stop()
	// a second stop is a no-op
	cs.Stop()
}

func TestCheckConsistency_CachedReport(t *testing.T) {
	// GIVEN: a scheduler whose last run saw drift
	// WHEN: the cached report is requested
	// THEN: the scheduler's report is returned instead of a fresh check

	srv, h := newTestServer(t)
	v := &fakeVerifier{report: gold.ConsistencyReport{
		Banks: []gold.BankDrift{{AccountID: "bank-main", Stored: decimal.NewFromInt(1), Replayed: decimal.Zero}},
	}}
	h.Scheduler = NewConsistencyScheduler(v, quietLogger(), time.Hour)
	_, err := h.Scheduler.RunNow()
	require.NoError(t, err)

	resp := do(t, srv, http.MethodGet, "/api/admin/consistency?cached=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dto := decode[ConsistencyDTO](t, resp)
	assert.False(t, dto.OK)
	require.Len(t, dto.Banks, 1)

	resp = do(t, srv, http.MethodGet, "/api/admin/consistency", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[ConsistencyDTO](t, resp).OK)
}
