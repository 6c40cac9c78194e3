package domain

// SubjectType differentiates human operators from the scheduler.
type SubjectType string

const (
	SubjectTypeStaff     SubjectType = "STAFF"
	SubjectTypeScheduler SubjectType = "SCHEDULER"
)

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent      StaffRole = "AGENT"
	StaffRoleSupervisor StaffRole = "SUPERVISOR"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAgent, StaffRoleSupervisor, StaffRoleAdmin:
		return true
	}
	return false
}
