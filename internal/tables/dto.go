package tables

import (
	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// DashboardTable is one floor-plan tile. Capacity is the persisted value;
// GroupCapacity sums every member of the table's link group and is display
// only.
type DashboardTable struct {
	models.POSTable
	ActiveOrder   *models.Order            `json:"active_order,omitempty"`
	DisplayStatus enums.TableDisplayStatus `json:"display_status"`
	GroupCapacity int                      `json:"group_capacity"`
}
