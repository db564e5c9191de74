package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/quizshare/internal/errors"
)

func TestKinds(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err      *errors.Error
		wantCode errors.Code
		wantHTTP int
	}{
		"validation": {
			err:      errors.Validation("bad input: %s", "x"),
			wantCode: errors.CodeInvalidArgument,
			wantHTTP: http.StatusBadRequest,
		},
		"permission": {
			err:      errors.Permission("nope"),
			wantCode: errors.CodePermissionDenied,
			wantHTTP: http.StatusForbidden,
		},
		"state": {
			err:      errors.State("already done"),
			wantCode: errors.CodeFailedPrecondition,
			wantHTTP: http.StatusConflict,
		},
		"timed out": {
			err:      errors.TimedOut("too late"),
			wantCode: errors.CodeDeadlineExceeded,
			wantHTTP: http.StatusGone,
		},
		"not found": {
			err:      errors.NotFound("missing"),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
		},
		"unauthenticated": {
			err:      errors.New(errors.CodeUnauthenticated),
			wantCode: errors.CodeUnauthenticated,
			wantHTTP: http.StatusUnauthorized,
		},
		"unmapped code": {
			err:      errors.New(errors.Code(codes.Unavailable)),
			wantCode: errors.Code(codes.Unavailable),
			wantHTTP: http.StatusInternalServerError,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantHTTP, tt.err.HTTPStatusCode())
			assert.Equal(t, codes.Code(tt.wantCode), status.Code(tt.err))
			assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.wantCode))
		})
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("db down")

	e := errors.Convert(cause)
	assert.Equal(t, errors.CodeInternal, e.Code)
	assert.ErrorIs(t, e, cause)

	nf := errors.NotFound("quiz not found: quiz=%s", "q1")
	assert.Same(t, nf, errors.Convert(fmt.Errorf("view: %w", nf)))
	assert.Equal(t, "quiz not found: quiz=q1", nf.Message)
	assert.False(t, errors.Is(cause, errors.CodeNotFound))
}
