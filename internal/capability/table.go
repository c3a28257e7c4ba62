package capability

import "github.com/ecclesia-hub/admin-client/internal/domain"

// table maps each known role to its capabilities. Entries are values, so a
// lookup always hands out a copy.
var table = map[string]domain.CapabilitySet{
	domain.RoleChurchAdmin: {
		ViewMembers: true, CreateMembers: true, EditMembers: true, DeleteMembers: true, ManageMembers: true,
		ViewVisitors: true, CreateVisitors: true, EditVisitors: true, DeleteVisitors: true,
		ViewActivities: true, CreateActivities: true, EditActivities: true, DeleteActivities: true,
		ManageBranches: true, ViewReports: true, ViewDashboard: true,
		ManageChurch: true, ManageUsers: true, ManageSettings: true,
		IsAdmin: true,
	},
	domain.RolePastor: {
		ViewMembers: true, CreateMembers: true, EditMembers: true, DeleteMembers: true, ManageMembers: true,
		ViewVisitors: true, CreateVisitors: true, EditVisitors: true, DeleteVisitors: true,
		ViewActivities: true, CreateActivities: true, EditActivities: true, DeleteActivities: true,
		ViewReports: true, ViewDashboard: true,
		IsPastor: true,
	},
	domain.RoleLeader: {
		ViewMembers:  true,
		ViewVisitors: true, CreateVisitors: true, EditVisitors: true,
		ViewActivities: true, CreateActivities: true, EditActivities: true,
		ViewDashboard: true,
		IsLeader:      true,
	},
	domain.RoleSecretary: {
		ViewMembers: true, CreateMembers: true, EditMembers: true,
		ViewVisitors: true, CreateVisitors: true, EditVisitors: true,
		ViewActivities: true, CreateActivities: true,
		ViewReports: true, ViewDashboard: true,
		IsSecretary: true,
	},
	domain.RoleMember: {
		ViewActivities: true,
		ViewDashboard:  true,
		IsMember:       true,
	},
}

// ForRole returns the capabilities of role. Unknown roles get the member set.
func ForRole(role string) domain.CapabilitySet {
	if set, ok := table[role]; ok {
		return set
	}
	return table[domain.RoleMember]
}

// None returns the empty set granted to anonymous and inactive users.
func None() domain.CapabilitySet {
	return domain.CapabilitySet{}
}
