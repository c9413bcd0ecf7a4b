package shared

// Capabilities checked by the users and roles grids.
const (
	PermUsersView   = "users.view"
	PermUsersEdit   = "users.edit"
	PermUsersDelete = "users.delete"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermUsersDelete,
		PermRolesView,
		PermRolesEdit,
	}
}
