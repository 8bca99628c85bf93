package controllers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/middlewares"
	"storefront/services"
)

func TestOrderOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"committed", nil, middlewares.OutcomeSuccess},
		{"empty order", fmt.Errorf("%w: %w", services.ErrValidation, services.ErrEmptyOrder), middlewares.OutcomeRejected},
		{"overflow", fmt.Errorf("%w: %w", services.ErrValidation, services.ErrTotalOverflow), middlewares.OutcomeRejected},
		{"store down", fmt.Errorf("store order: %w", errors.New("disk full")), middlewares.OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderOutcome(tt.err))
		})
	}
}
