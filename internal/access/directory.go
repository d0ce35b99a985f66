package access

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Role names checked by the workflow engine
const (
	RoleInsuranceAuditor  = "insurance-auditor"
	RoleLiquidityProvider = "liquidity-provider"
	RoleCoverAuditor      = "cover-auditor"
)

// Directory is the role/permission collaborator the engine consults.
// The engine only ever needs these reads; grant/revoke and admin transfer
// are privileged operations on the concrete registry.
type Directory interface {
	HasRole(role string, principal common.Address) bool
	IsAdmin(principal common.Address) bool
}

// DefaultAdminTransferDelay is the mandatory wait between initiating an
// admin transfer and the new admin being able to accept it.
const DefaultAdminTransferDelay = 3 * 24 * time.Hour

type pendingTransfer struct {
	newAdmin common.Address
	readyAt  time.Time
}

// RoleRegistry is an in-memory role directory with a single default
// administrator and a time-delayed admin transfer procedure. The delay is
// evaluated lazily against the clock when AcceptAdminTransfer is called.
type RoleRegistry struct {
	admin    common.Address
	grants   map[string]map[common.Address]bool
	pending  *pendingTransfer
	delay    time.Duration
	now      func() time.Time
}

func NewRoleRegistry(admin common.Address) *RoleRegistry {
	return &RoleRegistry{
		admin:  admin,
		grants: make(map[string]map[common.Address]bool),
		delay:  DefaultAdminTransferDelay,
		now:    time.Now,
	}
}

// SetClock overrides the time source (tests)
func (rr *RoleRegistry) SetClock(now func() time.Time) {
	rr.now = now
}

// SetTransferDelay overrides the admin transfer delay
func (rr *RoleRegistry) SetTransferDelay(d time.Duration) {
	rr.delay = d
}

func (rr *RoleRegistry) HasRole(role string, principal common.Address) bool {
	return rr.grants[role][principal]
}

func (rr *RoleRegistry) IsAdmin(principal common.Address) bool {
	return principal == rr.admin
}

// Admin returns the current default administrator
func (rr *RoleRegistry) Admin() common.Address {
	return rr.admin
}

// GrantRole assigns a named role; only the default administrator may grant
func (rr *RoleRegistry) GrantRole(caller common.Address, role string, principal common.Address) error {
	if !rr.IsAdmin(caller) {
		return fmt.Errorf("grant %s: caller %s is not the administrator", role, caller.Hex())
	}
	if rr.grants[role] == nil {
		rr.grants[role] = make(map[common.Address]bool)
	}
	rr.grants[role][principal] = true
	return nil
}

// RevokeRole removes a named role; only the default administrator may revoke
func (rr *RoleRegistry) RevokeRole(caller common.Address, role string, principal common.Address) error {
	if !rr.IsAdmin(caller) {
		return fmt.Errorf("revoke %s: caller %s is not the administrator", role, caller.Hex())
	}
	delete(rr.grants[role], principal)
	return nil
}

// InitiateAdminTransfer starts the delayed handover to a new administrator.
// Re-initiating overwrites any pending transfer and restarts the delay.
func (rr *RoleRegistry) InitiateAdminTransfer(caller, newAdmin common.Address) error {
	if !rr.IsAdmin(caller) {
		return fmt.Errorf("admin transfer: caller %s is not the administrator", caller.Hex())
	}
	if newAdmin == (common.Address{}) {
		return fmt.Errorf("admin transfer: new admin is the zero address")
	}
	rr.pending = &pendingTransfer{
		newAdmin: newAdmin,
		readyAt:  rr.now().Add(rr.delay),
	}
	return nil
}

// AcceptAdminTransfer completes a pending handover once the delay has elapsed
func (rr *RoleRegistry) AcceptAdminTransfer(caller common.Address) error {
	if rr.pending == nil {
		return fmt.Errorf("admin transfer: none pending")
	}
	if caller != rr.pending.newAdmin {
		return fmt.Errorf("admin transfer: caller %s is not the pending admin", caller.Hex())
	}
	if rr.now().Before(rr.pending.readyAt) {
		return fmt.Errorf("admin transfer: delay not elapsed (ready at %s)",
			rr.pending.readyAt.Format(time.RFC3339))
	}
	rr.admin = rr.pending.newAdmin
	rr.pending = nil
	return nil
}
