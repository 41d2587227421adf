package domain

import "fmt"

// Role is a capability granted to an identity. An identity may hold any
// number of roles; every mutating operation declares which roles may
// invoke it (see internal/access).
type Role string

const (
	RoleGovernment     Role = "government"
	RoleAuditor        Role = "auditor"
	RoleOracleOperator Role = "oracle_operator"
	RoleDataProvider   Role = "data_provider"
	RoleProducer       Role = "producer"
)

var knownRoles = map[Role]struct{}{
	RoleGovernment:     {},
	RoleAuditor:        {},
	RoleOracleOperator: {},
	RoleDataProvider:   {},
	RoleProducer:       {},
}

// ParseRole validates a role string at trust boundaries (config, JWT
// claims) so the rest of the system only ever sees known roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
