package shared

// Role names. RoleSuperAdmin is the top tier: it can never be handed out by
// anyone who does not already hold it, elevation included.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
	RoleTechnician = "technician"
)

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"

	PermElevationsView  = "elevations.view"
	PermElevationsGrant = "elevations.grant"
)

// Equipment-maintenance permissions consumed by the excluded workflow layer.
// The status workflow itself lives outside this core; it only asks Has().
const (
	PermEquipmentView      = "equipment.view"
	PermEquipmentEdit      = "equipment.edit"
	PermMaintenanceView    = "maintenance.view"
	PermMaintenanceUpdate  = "maintenance.update"
	PermMaintenanceApprove = "maintenance.approve"
	PermReportsView        = "reports.view"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermElevationsView,
		PermElevationsGrant,
	}
}
