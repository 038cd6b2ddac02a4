package service

import (
	"context"
	"time"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/lockout"
	"cspacehr/internal/model"
	"cspacehr/internal/rbac"
	"cspacehr/internal/repository"
	"cspacehr/internal/security"
	"cspacehr/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// MaxPINDraws bounds the random draws per employee during bulk assignment.
	MaxPINDraws = 50

	DefaultSwitchLogLimit = 100
	MaxSwitchLogLimit     = 500

	SkipReasonHasPIN   = "already_assigned"
	SkipReasonNoUnique = "no_unique_pin"

	warnAuditFailed = "switch succeeded but the audit entry could not be written; it was queued for retry"
	warnAuditLost   = "switch succeeded but the audit entry could not be written"
)

// SwitchInput identifies the terminal session asking to switch operators.
type SwitchInput struct {
	BranchID  string
	SessionID string
	PIN       string
}

// AuditQueue takes switch-log entries whose synchronous insert failed.
type AuditQueue interface {
	EnqueueSwitchLog(ctx context.Context, entry model.OperatorSwitchLog) error
}

type OperatorService interface {
	Switch(ctx context.Context, in SwitchInput) (*dto.SwitchOperatorResponse, error)
	BulkAssignPINs(ctx context.Context, actor token.Principal, req dto.AssignPINsRequest) (*dto.AssignPINsResponse, error)
	ListSwitchLogs(ctx context.Context, branchID string, limit int) ([]dto.SwitchLogResponse, error)
}

type operatorService struct {
	branches  repository.BranchRepository
	employees repository.EmployeeRepository
	logs      repository.SwitchLogRepository
	guard     *lockout.Guard
	hasher    security.Hasher
	access    AccessService
	audit     AuditQueue
	now       func() time.Time
	newPIN    func() (string, error)
}

// NewOperatorService wires the switch resolver. audit may be nil, in which
// case failed audit inserts are only logged.
func NewOperatorService(
	branches repository.BranchRepository,
	employees repository.EmployeeRepository,
	logs repository.SwitchLogRepository,
	guard *lockout.Guard,
	hasher security.Hasher,
	access AccessService,
	audit AuditQueue,
) OperatorService {
	return &operatorService{
		branches:  branches,
		employees: employees,
		logs:      logs,
		guard:     guard,
		hasher:    hasher,
		access:    access,
		audit:     audit,
		now:       time.Now,
		newPIN:    security.GeneratePIN,
	}
}

func intPtr(v int) *int { return &v }

func lockedResponse(remaining int) *dto.SwitchOperatorResponse {
	return &dto.SwitchOperatorResponse{
		Status:                  dto.SwitchStatusLocked,
		Locked:                  true,
		LockoutRemainingSeconds: intPtr(remaining),
	}
}

// Switch resolves a PIN to an operator of the branch.
// Format → branch → reserve attempt → roster scan → release+audit | settle as failure.
func (s *operatorService) Switch(ctx context.Context, in SwitchInput) (*dto.SwitchOperatorResponse, error) {
	if err := security.ValidatePIN(in.PIN); err != nil {
		return nil, apierror.InvalidCredentialFormat(err.Error())
	}
	if in.SessionID == "" {
		return nil, apierror.Unauthenticated("terminal session required")
	}
	branch, err := s.branches.FindByID(ctx, in.BranchID)
	if err != nil {
		return nil, notFoundOr(err, "branch not found")
	}

	key := lockout.Key{BranchID: branch.ID, SessionID: in.SessionID}
	res, err := s.guard.Reserve(ctx, key)
	if err != nil {
		return nil, apierror.Unavailable("lockout state unavailable", err)
	}
	if res.Locked {
		return lockedResponse(res.RemainingSeconds()), nil
	}

	now := s.now().UTC()
	candidates, err := s.employees.ListOperatorCandidates(ctx, branch.ID, now)
	if err != nil {
		if cerr := s.guard.Cancel(ctx, key, res); cerr != nil {
			log.Warn().Err(cerr).Str("branch_id", key.BranchID).Msg("lockout refund failed after roster error")
		}
		return nil, storeErr(err)
	}

	for _, c := range candidates {
		if s.hasher.Matches(c.Employee.PINHash, in.PIN) {
			return s.switched(ctx, key, c, now), nil
		}
	}

	f, err := s.guard.Fail(ctx, key, res)
	if err != nil {
		return nil, apierror.Unavailable("lockout state unavailable", err)
	}
	if f.Locked {
		log.Warn().
			Str("branch_id", key.BranchID).
			Str("session_id", key.SessionID).
			Int("failures", f.Failures).
			Int("lockout_seconds", f.LockoutRemainingSeconds()).
			Msg("operator PIN lockout engaged")
		return lockedResponse(f.LockoutRemainingSeconds()), nil
	}
	return &dto.SwitchOperatorResponse{
		Status:            dto.SwitchStatusInvalid,
		AttemptsRemaining: intPtr(f.AttemptsRemaining),
	}, nil
}

func (s *operatorService) switched(ctx context.Context, key lockout.Key, c repository.OperatorCandidate, now time.Time) *dto.SwitchOperatorResponse {
	if err := s.guard.Succeed(ctx, key); err != nil {
		log.Warn().Err(err).Str("branch_id", key.BranchID).Msg("lockout release failed after successful switch")
	}

	emp := c.Employee
	resp := &dto.SwitchOperatorResponse{
		Status: dto.SwitchStatusSwitched,
		Operator: &dto.OperatorResponse{
			EmployeeID:   emp.ID.String(),
			FullName:     emp.FullName,
			Position:     emp.Position,
			HomeBranchID: emp.BranchID,
			CrossBranch:  c.CrossBranch,
		},
		SwitchedAt: &now,
	}

	entry := model.OperatorSwitchLog{
		ID:           uuid.New(),
		BranchID:     key.BranchID,
		SessionID:    key.SessionID,
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName,
		HomeBranchID: emp.BranchID,
		CrossBranch:  c.CrossBranch,
		SwitchedAt:   now,
	}
	if err := s.logs.Create(ctx, &entry); err != nil {
		resp.Warning = warnAuditLost
		evt := log.Warn().Err(err).Str("branch_id", key.BranchID).Str("employee_id", emp.ID.String())
		if s.audit != nil {
			if qerr := s.audit.EnqueueSwitchLog(ctx, entry); qerr == nil {
				resp.Warning = warnAuditFailed
			} else {
				evt = evt.AnErr("enqueue_error", qerr)
			}
		}
		evt.Msg("operator switch audit write failed")
	}

	log.Info().
		Str("branch_id", key.BranchID).
		Str("session_id", key.SessionID).
		Str("employee_id", emp.ID.String()).
		Bool("cross_branch", c.CrossBranch).
		Msg("operator switched")
	return resp
}

// BulkAssignPINs draws a fresh PIN for every employee that needs one. Each PIN
// is unique within its branch batch and against the hashes of every operator
// who keeps their current PIN in that branch roster. Employees for whom no
// unique PIN turns up within MaxPINDraws draws are skipped and reported.
func (s *operatorService) BulkAssignPINs(ctx context.Context, actor token.Principal, req dto.AssignPINsRequest) (*dto.AssignPINsResponse, error) {
	if err := requirePermission(actor, rbac.PermPINsManage); err != nil {
		return nil, err
	}
	if req.BranchID == nil {
		if !rbac.HasPermission(actor.Role, rbac.PermBranchesAll) {
			return nil, apierror.Forbidden("branch_id is required without access to all branches")
		}
	} else {
		if _, err := s.branches.FindByID(ctx, *req.BranchID); err != nil {
			return nil, notFoundOr(err, "branch not found")
		}
		ok, err := s.access.CanAccessBranch(ctx, actor, *req.BranchID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apierror.Forbidden("no access to branch " + *req.BranchID)
		}
	}

	emps, err := s.employees.ListActive(ctx, req.BranchID)
	if err != nil {
		return nil, storeErr(err)
	}

	resp := &dto.AssignPINsResponse{Assigned: []dto.AssignedPIN{}, Skipped: []dto.SkippedPIN{}}
	byBranch := map[string][]model.Employee{}
	var order []string
	for _, e := range emps {
		if e.HasPIN() && !req.Overwrite {
			resp.Skipped = append(resp.Skipped, skipped(e, SkipReasonHasPIN))
			continue
		}
		if _, ok := byBranch[e.BranchID]; !ok {
			order = append(order, e.BranchID)
		}
		byBranch[e.BranchID] = append(byBranch[e.BranchID], e)
	}

	now := s.now().UTC()
	hashes := map[uuid.UUID]string{}
	for _, branchID := range order {
		targets := byBranch[branchID]
		assigned, skippedList, err := s.assignBranch(ctx, branchID, targets, now, hashes)
		if err != nil {
			return nil, err
		}
		resp.Assigned = append(resp.Assigned, assigned...)
		resp.Skipped = append(resp.Skipped, skippedList...)
	}

	if len(hashes) > 0 {
		if err := s.employees.SetPINHashes(ctx, hashes); err != nil {
			return nil, storeErr(err)
		}
	}
	log.Info().
		Str("actor_id", actor.ID).
		Int("assigned", len(resp.Assigned)).
		Int("skipped", len(resp.Skipped)).
		Bool("overwrite", req.Overwrite).
		Msg("operator PINs assigned")
	return resp, nil
}

func (s *operatorService) assignBranch(ctx context.Context, branchID string, targets []model.Employee, now time.Time, hashes map[uuid.UUID]string) ([]dto.AssignedPIN, []dto.SkippedPIN, error) {
	roster, err := s.employees.ListOperatorCandidates(ctx, branchID, now)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	reassigned := make(map[uuid.UUID]struct{}, len(targets))
	for _, e := range targets {
		reassigned[e.ID] = struct{}{}
	}
	var kept []string
	for _, c := range roster {
		if _, ok := reassigned[c.Employee.ID]; !ok {
			kept = append(kept, c.Employee.PINHash)
		}
	}

	var assigned []dto.AssignedPIN
	var skippedList []dto.SkippedPIN
	batch := map[string]struct{}{}
	for _, e := range targets {
		pin, err := s.drawUnique(batch, kept)
		if err != nil {
			return nil, nil, err
		}
		if pin == "" {
			log.Warn().
				Str("employee_id", e.ID.String()).
				Str("branch_id", branchID).
				Int("draws", MaxPINDraws).
				Msg("no unique PIN found, employee skipped")
			skippedList = append(skippedList, skipped(e, SkipReasonNoUnique))
			continue
		}
		hash, err := s.hasher.Hash(pin)
		if err != nil {
			return nil, nil, err
		}
		batch[pin] = struct{}{}
		hashes[e.ID] = hash
		assigned = append(assigned, dto.AssignedPIN{
			EmployeeID: e.ID.String(),
			FullName:   e.FullName,
			BranchID:   e.BranchID,
			PIN:        pin,
		})
	}
	return assigned, skippedList, nil
}

// drawUnique returns "" when every draw collided.
func (s *operatorService) drawUnique(batch map[string]struct{}, kept []string) (string, error) {
draw:
	for i := 0; i < MaxPINDraws; i++ {
		pin, err := s.newPIN()
		if err != nil {
			return "", err
		}
		if _, dup := batch[pin]; dup {
			continue
		}
		for _, h := range kept {
			if s.hasher.Matches(h, pin) {
				continue draw
			}
		}
		return pin, nil
	}
	return "", nil
}

func skipped(e model.Employee, reason string) dto.SkippedPIN {
	return dto.SkippedPIN{EmployeeID: e.ID.String(), FullName: e.FullName, BranchID: e.BranchID, Reason: reason}
}

func (s *operatorService) ListSwitchLogs(ctx context.Context, branchID string, limit int) ([]dto.SwitchLogResponse, error) {
	if limit <= 0 {
		limit = DefaultSwitchLogLimit
	}
	if limit > MaxSwitchLogLimit {
		limit = MaxSwitchLogLimit
	}
	if _, err := s.branches.FindByID(ctx, branchID); err != nil {
		return nil, notFoundOr(err, "branch not found")
	}
	entries, err := s.logs.ListByBranch(ctx, branchID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	resp := make([]dto.SwitchLogResponse, len(entries))
	for i, e := range entries {
		resp[i] = dto.SwitchLogResponse{
			ID:           e.ID.String(),
			BranchID:     e.BranchID,
			SessionID:    e.SessionID,
			EmployeeID:   e.EmployeeID.String(),
			EmployeeName: e.EmployeeName,
			HomeBranchID: e.HomeBranchID,
			CrossBranch:  e.CrossBranch,
			SwitchedAt:   e.SwitchedAt,
		}
	}
	return resp, nil
}
