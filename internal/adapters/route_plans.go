package adapters

import (
	"autodial_backend/internal/dispatch"
	"autodial_backend/internal/routes"
)

// RoutePlanAdapter resolves route names from the YAML table into the dial
// plans the originator applies. It implements dispatch.RoutePlans.
type RoutePlanAdapter struct {
	table *routes.Table
}

func NewRoutePlanAdapter(table *routes.Table) *RoutePlanAdapter {
	return &RoutePlanAdapter{table: table}
}

func (a *RoutePlanAdapter) PlanFor(name string) (dispatch.DialPlan, bool) {
	route, ok := a.table.Get(name)
	if !ok {
		return dispatch.DialPlan{}, false
	}
	return dispatch.DialPlan{
		Context:  route.Context,
		Exten:    route.Extension,
		Priority: route.Priority,
	}, true
}

var _ dispatch.RoutePlans = (*RoutePlanAdapter)(nil)
