package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iho/ledgerd/internal/adapter/http/dto"
	"github.com/iho/ledgerd/internal/domain"
)

type retryQueriesStub struct {
	dueLimit  int
	deadLimit int
	records   []*domain.RetryRecord
	err       error
}

func (s *retryQueriesStub) DueRetries(_ context.Context, limit int) ([]*domain.RetryRecord, error) {
	s.dueLimit = limit
	return s.records, s.err
}

func (s *retryQueriesStub) DeadLetters(_ context.Context, limit int) ([]*domain.RetryRecord, error) {
	s.deadLimit = limit
	return s.records, s.err
}

func TestRetryHandler_DeadLetters(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := &retryQueriesStub{records: []*domain.RetryRecord{{
		ID:             "retry-1",
		WorkerType:     domain.WorkerTypePeerToPeer,
		Status:         domain.RetryStatusFailed,
		AttemptCount:   5,
		MaxRetries:     5,
		FinalError:     "gateway down",
		DeadLetteredAt: &at,
	}}}
	h := NewRetryHandler(stub)

	rec := httptest.NewRecorder()
	h.DeadLetters(rec, httptest.NewRequest(http.MethodGet, "/retries/dead-letters?limit=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.deadLimit != 10 {
		t.Fatalf("expected limit 10, got %d", stub.deadLimit)
	}

	var resp []dto.RetryRecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].FinalError != "gateway down" || resp[0].DeadLetteredAt == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRetryHandler_Due(t *testing.T) {
	stub := &retryQueriesStub{}
	h := NewRetryHandler(stub)

	rec := httptest.NewRecorder()
	h.Due(rec, httptest.NewRequest(http.MethodGet, "/retries/due", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.dueLimit != 0 {
		t.Fatalf("expected default limit to be left to the service, got %d", stub.dueLimit)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty list, got %q", body)
	}
}

func TestRetryHandler_Error(t *testing.T) {
	h := NewRetryHandler(&retryQueriesStub{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	h.Due(rec, httptest.NewRequest(http.MethodGet, "/retries/due", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
