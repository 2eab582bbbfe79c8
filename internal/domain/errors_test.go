package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func TestAnalysisError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	err := domain.NewError(domain.KindPageHandle, "opening page", cause)
	assert.Equal(t, "opening page: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "no output", domain.NewError(domain.KindEngineUnavailable, "no output", nil).Error())
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("analyzing page: %w", domain.NewError(domain.KindTimeout, "deadline", context.DeadlineExceeded))
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, domain.KindUnknown, domain.KindOf(errors.New("plain")))
	assert.Equal(t, domain.KindUnknown, domain.KindOf(nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), true},
		{domain.NewError(domain.KindTimeout, "t", nil), true},
		{domain.NewError(domain.KindPageHandle, "p", nil), true},
		{domain.NewError(domain.KindInvalidOptions, "o", nil), false},
		{domain.NewError(domain.KindInvalidTarget, "u", nil), false},
		{domain.NewError(domain.KindCancelled, "c", nil), false},
		{domain.NewError(domain.KindValidation, "v", nil), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "timeout", domain.KindTimeout.String())
	assert.Equal(t, "invalid_target", domain.KindInvalidTarget.String())
	assert.Equal(t, "unknown", domain.ErrorKind(99).String())
}
