package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meatshop/internal/domain"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name  string
		actor domain.Actor
		cap   Capability
		want  error
	}{
		{"anonymous", domain.Actor{}, CapManageCatalog, ErrUnauthorized},
		{"customer catalog", customer, CapManageCatalog, ErrForbidden},
		{"customer orders", customer, CapManageOrders, ErrForbidden},
		{"customer view all", customer, CapViewAllOrders, ErrForbidden},
		{"admin catalog", admin, CapManageCatalog, nil},
		{"admin orders", admin, CapManageOrders, nil},
		{"admin view all", admin, CapViewAllOrders, nil},
		{"unknown role", domain.Actor{UserID: "x", Role: "courier"}, CapManageOrders, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.cap)
			if tt.want == nil {
				assert.NoError(t, err)
				assert.True(t, Can(tt.actor, tt.cap))
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, Can(tt.actor, tt.cap))
		})
	}
}
