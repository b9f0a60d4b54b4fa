// Package timelock implements the role-gated scheduler that owns the
// treasury.
//
// An operation is a call batch identified by hash(batch, predecessor, salt).
// Proposers schedule it with a delay of at least the minimum delay; once
// the ready block is reached an executor runs every call in order, as the
// timelock. A failed call rejects the whole execution and the operation
// stays scheduled, so it can be retried.
//
// Role membership is a set-membership check at the top of each mutating
// operation. Every role is administered by DEFAULT_ADMIN_ROLE.
package timelock

import (
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// Kind is the address book kind of a timelock.
const Kind = "Timelock"

// Role identifiers, keccak256 of the role name.
var (
	DefaultAdminRole = ir.Keccak256([]byte("DEFAULT_ADMIN_ROLE"))
	ProposerRole     = ir.Keccak256([]byte("PROPOSER_ROLE"))
	ExecutorRole     = ir.Keccak256([]byte("EXECUTOR_ROLE"))
	CancellerRole    = ir.Keccak256([]byte("CANCELLER_ROLE"))
)

var roleNames = map[ir.Hash]string{
	DefaultAdminRole: "DEFAULT_ADMIN_ROLE",
	ProposerRole:     "PROPOSER_ROLE",
	ExecutorRole:     "EXECUTOR_ROLE",
	CancellerRole:    "CANCELLER_ROLE",
}

// RoleByName resolves a role name such as "PROPOSER_ROLE".
func RoleByName(name string) (ir.Hash, bool) {
	for h, n := range roleNames {
		if n == name {
			return h, true
		}
	}
	return ir.Hash{}, false
}

// RoleName returns the role name, or the hex id for unknown roles.
func RoleName(role ir.Hash) string {
	if n, ok := roleNames[role]; ok {
		return n
	}
	return role.Hex()
}

var (
	selUpdateDelay = ir.SelectorOf("updateDelay(uint256)")
	selGrantRole   = ir.SelectorOf("grantRole(bytes32,address)")
	selRevokeRole  = ir.SelectorOf("revokeRole(bytes32,address)")
)

// Timelock is a deployed timelock controller.
type Timelock struct {
	addr ir.Address
}

// At returns the timelock deployed at addr.
func At(addr ir.Address) *Timelock {
	return &Timelock{addr: addr}
}

// Config is the deployment configuration.
type Config struct {
	MinDelay  int64
	Proposers []ir.Address
	Executors []ir.Address

	// Admin receives DEFAULT_ADMIN_ROLE next to the timelock itself. Zero
	// means the deployer.
	Admin ir.Address
}

type roleGrant struct {
	role ir.Hash
	acct ir.Address
}

// Deploy creates a timelock. The timelock itself and the admin hold
// DEFAULT_ADMIN_ROLE; proposers also become cancellers.
func Deploy(env *ledger.Env, cfg Config) (*Timelock, error) {
	if err := ir.CheckBlocks("min delay", cfg.MinDelay); err != nil {
		return nil, err
	}
	tl := At(ir.ContractAddress(env.Self(), Kind))
	if err := env.Deploy(tl); err != nil {
		return nil, err
	}
	admin := cfg.Admin
	if admin.IsZero() {
		admin = env.Self()
	}

	frame := env.Enter(tl.addr)
	if err := env.Store().WriteMinDelay(tl.addr, cfg.MinDelay); err != nil {
		return nil, err
	}
	grants := []roleGrant{
		{DefaultAdminRole, tl.addr},
		{DefaultAdminRole, admin},
	}
	for _, p := range cfg.Proposers {
		grants = append(grants, roleGrant{ProposerRole, p}, roleGrant{CancellerRole, p})
	}
	for _, e := range cfg.Executors {
		grants = append(grants, roleGrant{ExecutorRole, e})
	}
	for _, g := range grants {
		if err := tl.grant(frame, g.role, g.acct); err != nil {
			return nil, err
		}
	}
	frame.Emit("MinDelayChange", ir.Object{"oldDuration": ir.Int(0), "newDuration": ir.Int(cfg.MinDelay)})
	frame.Logger().Info("timelock deployed",
		"min_delay", cfg.MinDelay,
		"proposers", len(cfg.Proposers),
		"executors", len(cfg.Executors))
	return tl, nil
}

// Address implements ledger.Contract.
func (tl *Timelock) Address() ir.Address { return tl.addr }

// Kind implements ledger.Contract.
func (tl *Timelock) Kind() string { return Kind }

// Dispatch implements ledger.Contract. Empty calldata is the receive hook;
// the configuration selectors are only callable by the timelock itself,
// i.e. from an executed operation.
func (tl *Timelock) Dispatch(env *ledger.Env, data []byte) error {
	if len(data) == 0 {
		env.Emit("Received", ir.Object{
			"from":  ir.String(env.Caller().Hex()),
			"value": ir.String(env.Value().String()),
		})
		return nil
	}
	call, err := ir.DecodeCall(data)
	if err != nil {
		return err
	}
	switch call.Selector {
	case selUpdateDelay:
		if err := call.Arity(1); err != nil {
			return err
		}
		d, err := call.Args[0].Uint64()
		if err != nil {
			return err
		}
		return tl.UpdateDelay(env, int64(d))
	case selGrantRole, selRevokeRole:
		if err := call.Arity(2); err != nil {
			return err
		}
		acct, err := call.Args[1].Address()
		if err != nil {
			return err
		}
		if call.Selector == selGrantRole {
			return tl.GrantRole(env, call.Args[0].Hash(), acct)
		}
		return tl.RevokeRole(env, call.Args[0].Hash(), acct)
	}
	return ir.Errorf(ir.CodeInvalidArgument, "timelock: unknown selector %s", call.Selector)
}

func (tl *Timelock) checkRole(env *ledger.Env, role ir.Hash, acct ir.Address) error {
	ok, err := env.Store().HasRole(tl.addr, role, acct)
	if err != nil {
		return err
	}
	if !ok {
		return ir.Errorf(ir.CodeUnauthorized, "%s is missing %s", acct, RoleName(role)).
			With("account", acct.Hex()).
			With("role", RoleName(role))
	}
	return nil
}

// HasRole reports whether acct holds role.
func (tl *Timelock) HasRole(env *ledger.Env, role ir.Hash, acct ir.Address) (bool, error) {
	return env.Store().HasRole(tl.addr, role, acct)
}

// RoleMembers lists the holders of role.
func (tl *Timelock) RoleMembers(env *ledger.Env, role ir.Hash) ([]ir.Address, error) {
	return env.Store().RoleMembers(tl.addr, role)
}

// GrantRole gives role to acct. The caller must hold DEFAULT_ADMIN_ROLE.
func (tl *Timelock) GrantRole(env *ledger.Env, role ir.Hash, acct ir.Address) error {
	if err := tl.checkRole(env, DefaultAdminRole, env.Caller()); err != nil {
		return err
	}
	return tl.grant(env, role, acct)
}

func (tl *Timelock) grant(env *ledger.Env, role ir.Hash, acct ir.Address) error {
	added, err := env.Store().GrantRole(tl.addr, role, acct)
	if err != nil {
		return err
	}
	if added {
		env.Emit("RoleGranted", roleFields(role, acct, env.Caller()))
	}
	return nil
}

// RevokeRole removes role from acct. The caller must hold DEFAULT_ADMIN_ROLE.
func (tl *Timelock) RevokeRole(env *ledger.Env, role ir.Hash, acct ir.Address) error {
	if err := tl.checkRole(env, DefaultAdminRole, env.Caller()); err != nil {
		return err
	}
	return tl.revoke(env, role, acct)
}

// RenounceRole drops one of the caller's own roles. acct must be the caller.
func (tl *Timelock) RenounceRole(env *ledger.Env, role ir.Hash, acct ir.Address) error {
	if acct != env.Caller() {
		return ir.Errorf(ir.CodeUnauthorized, "can only renounce roles for self")
	}
	return tl.revoke(env, role, acct)
}

func (tl *Timelock) revoke(env *ledger.Env, role ir.Hash, acct ir.Address) error {
	removed, err := env.Store().RevokeRole(tl.addr, role, acct)
	if err != nil {
		return err
	}
	if removed {
		env.Emit("RoleRevoked", roleFields(role, acct, env.Caller()))
	}
	return nil
}

func roleFields(role ir.Hash, acct, sender ir.Address) ir.Object {
	return ir.Object{
		"role":    ir.String(RoleName(role)),
		"account": ir.String(acct.Hex()),
		"sender":  ir.String(sender.Hex()),
	}
}

// GetMinDelay returns the minimum scheduling delay in blocks.
func (tl *Timelock) GetMinDelay(env *ledger.Env) (int64, error) {
	d, found, err := env.Store().ReadMinDelay(tl.addr)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ir.Errorf(ir.CodeNotFound, "no timelock at %s", tl.addr)
	}
	return d, nil
}

// UpdateDelay changes the minimum delay. Only the timelock itself may call
// it, so a change needs a scheduled and executed operation.
func (tl *Timelock) UpdateDelay(env *ledger.Env, newDelay int64) error {
	if env.Caller() != tl.addr {
		return ir.Errorf(ir.CodeUnauthorized, "updateDelay is only callable by the timelock")
	}
	if err := ir.CheckBlocks("min delay", newDelay); err != nil {
		return err
	}
	old, err := tl.GetMinDelay(env)
	if err != nil {
		return err
	}
	if err := env.Store().WriteMinDelay(tl.addr, newDelay); err != nil {
		return err
	}
	env.Emit("MinDelayChange", ir.Object{"oldDuration": ir.Int(old), "newDuration": ir.Int(newDelay)})
	return nil
}

// HashOperationBatch returns the operation id of (batch, predecessor, salt).
func HashOperationBatch(b ir.Batch, predecessor, salt ir.Hash) (ir.Hash, error) {
	if err := b.Validate(); err != nil {
		return ir.Hash{}, err
	}
	return ir.OperationID(b, predecessor, salt)
}

// Operation returns the stored operation. found is false for an id that
// was never scheduled or was cancelled.
func (tl *Timelock) Operation(env *ledger.Env, id ir.Hash) (store.Operation, bool, error) {
	return env.Store().ReadOperation(tl.addr, id)
}

// IsOperation reports whether id is scheduled or done.
func (tl *Timelock) IsOperation(env *ledger.Env, id ir.Hash) (bool, error) {
	_, found, err := tl.Operation(env, id)
	return found, err
}

// IsOperationPending reports whether id is scheduled and not yet done.
func (tl *Timelock) IsOperationPending(env *ledger.Env, id ir.Hash) (bool, error) {
	op, found, err := tl.Operation(env, id)
	return found && !op.Done, err
}

// IsOperationReady reports whether id is pending and its ready block has
// been reached.
func (tl *Timelock) IsOperationReady(env *ledger.Env, id ir.Hash) (bool, error) {
	op, found, err := tl.Operation(env, id)
	return found && !op.Done && op.ReadyBlock <= env.Block(), err
}

// IsOperationDone reports whether id has been executed.
func (tl *Timelock) IsOperationDone(env *ledger.Env, id ir.Hash) (bool, error) {
	op, found, err := tl.Operation(env, id)
	return found && op.Done, err
}

// GetReadyBlock returns the block from which id may execute, 0 if it is
// not scheduled.
func (tl *Timelock) GetReadyBlock(env *ledger.Env, id ir.Hash) (int64, error) {
	op, found, err := tl.Operation(env, id)
	if err != nil || !found {
		return 0, err
	}
	return op.ReadyBlock, nil
}

// ScheduleBatch schedules b to become executable delay blocks from now.
// The caller must hold PROPOSER_ROLE.
func (tl *Timelock) ScheduleBatch(env *ledger.Env, b ir.Batch, predecessor, salt ir.Hash, delay int64) (ir.Hash, error) {
	if err := tl.checkRole(env, ProposerRole, env.Caller()); err != nil {
		return ir.Hash{}, err
	}
	id, err := HashOperationBatch(b, predecessor, salt)
	if err != nil {
		return ir.Hash{}, err
	}
	minDelay, err := tl.GetMinDelay(env)
	if err != nil {
		return ir.Hash{}, err
	}
	if delay < minDelay {
		return ir.Hash{}, ir.Errorf(ir.CodeInvalidArgument, "delay %d is below the minimum %d", delay, minDelay)
	}
	ready, err := ir.AddBlocks(env.Block(), delay)
	if err != nil {
		return ir.Hash{}, err
	}

	existing, found, err := tl.Operation(env, id)
	if err != nil {
		return ir.Hash{}, err
	}
	if found {
		state := "pending"
		if existing.Done {
			state = "done"
		}
		return ir.Hash{}, ir.Errorf(ir.CodeAlreadyScheduled, "operation %s is already %s", id, state).
			With("operation", id.Hex())
	}

	op := store.Operation{
		Timelock:    tl.addr,
		ID:          id,
		Batch:       b,
		Predecessor: predecessor,
		Salt:        salt,
		ReadyBlock:  ready,
	}
	if err := env.Store().WriteOperation(op); err != nil {
		return ir.Hash{}, err
	}
	for i := 0; i < b.Len(); i++ {
		env.Emit("CallScheduled", ir.Object{
			"id":          ir.String(id.Hex()),
			"index":       ir.Int(i),
			"target":      ir.String(b.Targets[i].Hex()),
			"value":       ir.String(b.Values[i].String()),
			"data":        ir.String(fmt.Sprintf("0x%x", b.Calldatas[i])),
			"predecessor": ir.String(predecessor.Hex()),
			"delay":       ir.Int(delay),
		})
	}
	if !salt.IsZero() {
		env.Emit("CallSalt", ir.Object{"id": ir.String(id.Hex()), "salt": ir.String(salt.Hex())})
	}
	env.Logger().Info("operation scheduled", "id", id.Hex(), "calls", b.Len(), "ready_block", op.ReadyBlock)
	return id, nil
}

// ExecuteBatch runs a ready operation. The caller must hold EXECUTOR_ROLE,
// unless the role was granted to the zero address.
func (tl *Timelock) ExecuteBatch(env *ledger.Env, b ir.Batch, predecessor, salt ir.Hash) error {
	open, err := tl.HasRole(env, ExecutorRole, ir.ZeroAddress)
	if err != nil {
		return err
	}
	if !open {
		if err := tl.checkRole(env, ExecutorRole, env.Caller()); err != nil {
			return err
		}
	}
	id, err := HashOperationBatch(b, predecessor, salt)
	if err != nil {
		return err
	}

	op, found, err := tl.Operation(env, id)
	if err != nil {
		return err
	}
	switch {
	case !found:
		return ir.Errorf(ir.CodeNotFound, "operation %s is not scheduled", id).With("operation", id.Hex())
	case op.Done:
		return ir.Errorf(ir.CodeInvalidState, "operation %s was already executed", id).With("operation", id.Hex())
	case op.ReadyBlock > env.Block():
		return ir.Errorf(ir.CodeNotReady, "operation %s is ready at block %d, current block %d", id, op.ReadyBlock, env.Block()).
			With("operation", id.Hex())
	}
	if !predecessor.IsZero() {
		done, err := tl.IsOperationDone(env, predecessor)
		if err != nil {
			return err
		}
		if !done {
			return ir.Errorf(ir.CodePredecessorNotExecuted, "predecessor %s of %s has not executed", predecessor, id)
		}
	}

	for i := 0; i < b.Len(); i++ {
		if err := env.Call(b.Targets[i], b.Values[i], b.Calldatas[i]); err != nil {
			return fmt.Errorf("operation %s call %d to %s: %w", id.Hex(), i, b.Targets[i], err)
		}
		env.Emit("CallExecuted", ir.Object{
			"id":     ir.String(id.Hex()),
			"index":  ir.Int(i),
			"target": ir.String(b.Targets[i].Hex()),
			"value":  ir.String(b.Values[i].String()),
		})
	}

	// A call that re-entered and executed the same operation.
	op, _, err = tl.Operation(env, id)
	if err != nil {
		return err
	}
	if op.Done {
		return ir.Errorf(ir.CodeInvalidState, "operation %s executed during its own execution", id)
	}
	op.Done = true
	if err := env.Store().WriteOperation(op); err != nil {
		return err
	}
	env.Logger().Info("operation executed", "id", id.Hex(), "calls", b.Len())
	return nil
}

// Cancel drops a pending operation. The caller must hold CANCELLER_ROLE.
func (tl *Timelock) Cancel(env *ledger.Env, id ir.Hash) error {
	if err := tl.checkRole(env, CancellerRole, env.Caller()); err != nil {
		return err
	}
	pending, err := tl.IsOperationPending(env, id)
	if err != nil {
		return err
	}
	if !pending {
		return ir.Errorf(ir.CodeInvalidState, "operation %s is not pending", id).With("operation", id.Hex())
	}
	if err := env.Store().DeleteOperation(tl.addr, id); err != nil {
		return err
	}
	env.Emit("Cancelled", ir.Object{"id": ir.String(id.Hex())})
	env.Logger().Info("operation cancelled", "id", id.Hex())
	return nil
}

// UpdateDelayCalldata encodes updateDelay(newDelay) for operation batches.
func UpdateDelayCalldata(newDelay int64) []byte {
	return ir.EncodeCall("updateDelay(uint256)", ir.UintWord(uint64(newDelay)))
}

// GrantRoleCalldata encodes grantRole(role, acct) for operation batches.
func GrantRoleCalldata(role ir.Hash, acct ir.Address) []byte {
	return ir.EncodeCall("grantRole(bytes32,address)", ir.HashWord(role), ir.AddressWord(acct))
}

// RevokeRoleCalldata encodes revokeRole(role, acct) for operation batches.
func RevokeRoleCalldata(role ir.Hash, acct ir.Address) []byte {
	return ir.EncodeCall("revokeRole(bytes32,address)", ir.HashWord(role), ir.AddressWord(acct))
}
