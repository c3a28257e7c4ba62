package domain

// Role names known to the capability table.
const (
	RoleChurchAdmin = "church_admin"
	RolePastor      = "pastor"
	RoleLeader      = "leader"
	RoleSecretary   = "secretary"
	RoleMember      = "member"
)

// Roles lists every known role, most privileged first.
var Roles = []string{RoleChurchAdmin, RolePastor, RoleLeader, RoleSecretary, RoleMember}

// KnownRole reports whether role appears in Roles.
func KnownRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CapabilitySet is the fixed set of named permissions screens consult.
type CapabilitySet struct {
	ViewMembers   bool `json:"view_members"`
	CreateMembers bool `json:"create_members"`
	EditMembers   bool `json:"edit_members"`
	DeleteMembers bool `json:"delete_members"`
	ManageMembers bool `json:"manage_members"`

	ViewVisitors   bool `json:"view_visitors"`
	CreateVisitors bool `json:"create_visitors"`
	EditVisitors   bool `json:"edit_visitors"`
	DeleteVisitors bool `json:"delete_visitors"`

	ViewActivities   bool `json:"view_activities"`
	CreateActivities bool `json:"create_activities"`
	EditActivities   bool `json:"edit_activities"`
	DeleteActivities bool `json:"delete_activities"`

	ManageBranches bool `json:"manage_branches"`
	ViewReports    bool `json:"view_reports"`
	ViewDashboard  bool `json:"view_dashboard"`
	ManageChurch   bool `json:"manage_church"`
	ManageUsers    bool `json:"manage_users"`
	ManageSettings bool `json:"manage_settings"`

	IsAdmin     bool `json:"is_admin"`
	IsPastor    bool `json:"is_pastor"`
	IsLeader    bool `json:"is_leader"`
	IsSecretary bool `json:"is_secretary"`
	IsMember    bool `json:"is_member"`
}
