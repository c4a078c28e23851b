package identity

import "github.com/shoplane/fulfillment/pkg/api"

// Candidate groups the order process routes tasks to.
const (
	GroupOrderManagers = "order_managers"
	GroupFinanceTeam   = "finance_team"
	GroupWarehouseTeam = "warehouse_team"
	GroupDeliveryTeam  = "delivery_team"
)

// Seed returns the bootstrap directory: one group per team with two members
// each. Group ids use underscores, not hyphens, because several downstream
// tools treat hyphens in resource ids as invalid.
func Seed() *Directory {
	groups := []api.Group{
		{ID: GroupOrderManagers, Name: "Order Managers", Type: "GROUP"},
		{ID: GroupFinanceTeam, Name: "Finance Team", Type: "GROUP"},
		{ID: GroupWarehouseTeam, Name: "Warehouse Team", Type: "GROUP"},
		{ID: GroupDeliveryTeam, Name: "Delivery Team", Type: "GROUP"},
	}
	users := []api.User{
		{ID: "manager1", FirstName: "John", LastName: "Manager", Email: "john.manager@example.com", Groups: []string{GroupOrderManagers}},
		{ID: "manager2", FirstName: "Sarah", LastName: "Manager", Email: "sarah.manager@example.com", Groups: []string{GroupOrderManagers}},
		{ID: "finance1", FirstName: "Michael", LastName: "Finance", Email: "michael.finance@example.com", Groups: []string{GroupFinanceTeam}},
		{ID: "finance2", FirstName: "Emily", LastName: "Finance", Email: "emily.finance@example.com", Groups: []string{GroupFinanceTeam}},
		{ID: "warehouse1", FirstName: "Mike", LastName: "Warehouse", Email: "mike.warehouse@example.com", Groups: []string{GroupWarehouseTeam}},
		{ID: "warehouse2", FirstName: "Lisa", LastName: "Warehouse", Email: "lisa.warehouse@example.com", Groups: []string{GroupWarehouseTeam}},
		{ID: "delivery1", FirstName: "David", LastName: "Delivery", Email: "david.delivery@example.com", Groups: []string{GroupDeliveryTeam}},
		{ID: "delivery2", FirstName: "Anna", LastName: "Delivery", Email: "anna.delivery@example.com", Groups: []string{GroupDeliveryTeam}},
	}
	return New(users, groups)
}
