package access

import id "subsidyledger/pkg/domain"

// Operation names a mutating operation for authorization purposes.
// The policy table below is the single place "who can call what" lives;
// services never hardcode role checks in business logic.
type Operation string

const (
	OpAddFunds            Operation = "funds.add"
	OpRegisterProject     Operation = "ledger.register_project"
	OpAddMilestone        Operation = "ledger.add_milestone"
	OpVerifyMilestone     Operation = "ledger.verify_milestone"
	OpUpdateProjectStatus Operation = "ledger.update_project_status"
	OpRetryPayment        Operation = "ledger.retry_payment"
	OpRaiseDispute        Operation = "dispute.raise"
	OpResolveDispute      Operation = "dispute.resolve"
	OpAddSource           Operation = "sources.add"
	OpRemoveSource        Operation = "sources.remove"
	OpUpdateReliability   Operation = "sources.update_reliability"
	OpSubmitData          Operation = "oracle.submit"
	OpVerifyData          Operation = "oracle.verify"
	OpPause               Operation = "control.pause"
	OpGrantRole           Operation = "access.grant_role"
	OpRevokeRole          Operation = "access.revoke_role"
)

// policy maps each operation to the roles allowed to invoke it (OR
// semantics: any listed role suffices). Raising a dispute additionally
// admits the owning project's producer; that relationship check lives in
// the dispute service because it needs the project, not just the role.
var policy = map[Operation][]id.Role{
	OpAddFunds:            {id.RoleGovernment},
	OpRegisterProject:     {id.RoleGovernment},
	OpAddMilestone:        {id.RoleGovernment},
	OpVerifyMilestone:     {id.RoleOracleOperator, id.RoleAuditor},
	OpUpdateProjectStatus: {id.RoleGovernment},
	OpRetryPayment:        {id.RoleGovernment, id.RoleAuditor},
	OpRaiseDispute:        {id.RoleGovernment, id.RoleProducer},
	OpResolveDispute:      {id.RoleAuditor},
	OpAddSource:           {id.RoleOracleOperator},
	OpRemoveSource:        {id.RoleOracleOperator},
	OpUpdateReliability:   {id.RoleOracleOperator},
	OpSubmitData:          {id.RoleDataProvider},
	OpVerifyData:          {id.RoleOracleOperator},
	OpPause:               {id.RoleGovernment},
	OpGrantRole:           {id.RoleGovernment},
	OpRevokeRole:          {id.RoleGovernment},
}

// AllowedRoles returns the role set for an operation. Unknown operations
// return nil, which Require treats as deny-all.
func AllowedRoles(op Operation) []id.Role {
	return policy[op]
}
