package service

import "meatshop/internal/domain"

// Capability право на выполнение административной операции
type Capability string

const (
	CapManageCatalog Capability = "catalog:manage"
	CapManageOrders  Capability = "orders:manage"
	CapViewAllOrders Capability = "orders:view-all"
)

var roleCapabilities = map[domain.Role]map[Capability]bool{
	domain.RoleAdmin: {
		CapManageCatalog: true,
		CapManageOrders:  true,
		CapViewAllOrders: true,
	},
	domain.RoleUser: {},
}

// Authorize единая проверка прав: ErrUnauthorized без пользователя, ErrForbidden без права
func Authorize(actor domain.Actor, c Capability) error {
	if actor.UserID == "" {
		return ErrUnauthorized
	}
	if !roleCapabilities[actor.Role][c] {
		return ErrForbidden
	}
	return nil
}

func Can(actor domain.Actor, c Capability) bool {
	return Authorize(actor, c) == nil
}
