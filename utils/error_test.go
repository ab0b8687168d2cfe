package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAppErrorMatching(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("create: %w", NewSlotUnavailableError("b-1"))

	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("errors.Is(ErrSlotUnavailable) false for %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("errors.Is(ErrNotFound) true for %v", err)
	}
	if got := CodeOf(err); got != CodeSlotUnavailable {
		t.Errorf("CodeOf: got %s", got)
	}
	cause := errors.New("socket closed")
	if !errors.Is(NewStoreUnavailableError("insert", cause), cause) {
		t.Errorf("store error must keep its cause")
	}
}

func TestRespondErrorStatus(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err        error
		status     int
		retryAfter bool
	}{
		{NewValidationError("date", "must be YYYY-MM-DD"), http.StatusBadRequest, false},
		{NewSlotUnavailableError("b-1"), http.StatusConflict, false},
		{NewInvalidTransitionError("completed", "cancelled"), http.StatusConflict, false},
		{NewForbiddenError("no"), http.StatusForbidden, false},
		{NewNotFoundError("booking", "x"), http.StatusNotFound, false},
		{NewStoreUnavailableError("insert", errors.New("dial tcp: timeout")), http.StatusServiceUnavailable, true},
		{errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		RespondError(c, tt.err)

		if w.Code != tt.status {
			t.Errorf("%v: status %d, want %d", tt.err, w.Code, tt.status)
		}
		if got := w.Header().Get("Retry-After") != ""; got != tt.retryAfter {
			t.Errorf("%v: Retry-After present=%v, want %v", tt.err, got, tt.retryAfter)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if tt.retryAfter && (body.Field != "" || !body.Retryable) {
			t.Errorf("store failure body leaks detail or is not retryable: %+v", body)
		}
	}
}
