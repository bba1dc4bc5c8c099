package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

type BulkStatus string

const (
	BulkPrepared BulkStatus = "prepared"
	BulkExecuted BulkStatus = "executed"
	BulkAborted  BulkStatus = "aborted"
)

// BulkRequest is a bulk operation as typed by the operator. Names are resolved only after
// the request is confirmed.
type BulkRequest struct {
	Operation  OperationKind
	Intent     string
	TargetType string
	GroupName  string
	GroupMode  string
	FilterMode string
	FilterName string
	AppIDs     []string
}

type BulkResult struct {
	Status  BulkStatus           `json:"status"`
	Message string               `json:"message"`
	Pending *PendingConfirmation `json:"pending,omitempty"`
	// Conflicting holds the names of apps skipped because the target already has another intent.
	Conflicting     []string `json:"conflicting,omitempty"`
	ConflictSummary string   `json:"conflictSummary,omitempty"`
	TargetLabel     string   `json:"targetLabel,omitempty"`
	Outcome         *Outcome `json:"outcome,omitempty"`
}

type BulkService struct {
	sessions *SessionManager
	bus      eventbus.EventBus
	log      *logrus.Entry
}

func NewBulkService(sessions *SessionManager, bus eventbus.EventBus, log *logrus.Entry) *BulkService {
	if log == nil {
		log = logging.Discard()
	}
	return &BulkService{sessions: sessions, bus: bus, log: log}
}

type bulkPlan struct {
	op         OperationKind
	intent     assignment.Intent
	kind       assignment.Kind
	groupName  string
	groupMode  assignment.GroupMode
	filterMode assignment.FilterMode
	filterName string
}

// parseRequest checks the request shape without touching the network.
func parseRequest(req BulkRequest) (bulkPlan, error) {
	p := bulkPlan{
		op:         req.Operation,
		groupName:  strings.TrimSpace(req.GroupName),
		filterName: strings.TrimSpace(req.FilterName),
	}
	if p.op != OperationAssign && p.op != OperationRemove {
		return p, invalidRequest("unknown operation %q", req.Operation)
	}

	var err error
	if p.intent, err = assignment.ParseIntent(req.Intent); err != nil {
		return p, invalidRequest("%v", err)
	}
	if p.kind, err = assignment.ParseKind(req.TargetType); err != nil {
		return p, invalidRequest("%v", err)
	}
	if p.groupMode, err = assignment.ParseGroupMode(req.GroupMode); err != nil {
		return p, invalidRequest("%v", err)
	}
	if p.filterMode, err = assignment.ParseFilterMode(req.FilterMode); err != nil {
		return p, invalidRequest("%v", err)
	}

	if p.kind == assignment.KindGroup {
		if p.groupName == "" {
			return p, invalidRequest("group name is required for a group target")
		}
	} else {
		p.groupName, p.groupMode = "", ""
	}
	if p.filterMode == assignment.FilterNone {
		p.filterName = ""
	} else if p.filterName == "" {
		return p, invalidRequest("filter name is required when filter mode is %s", p.filterMode)
	}
	if p.kind == assignment.KindGroup && p.groupMode == assignment.GroupExclude && p.filterMode != assignment.FilterNone {
		return p, newServiceError(http.StatusBadRequest, ErrExclusionFilter.Code, ErrExclusionFilter.Message, ErrExclusionFilter)
	}
	return p, nil
}

func (p bulkPlan) fingerprint(count int) PendingConfirmation {
	return PendingConfirmation{
		Operation: p.op,
		Intent:    string(p.intent),
		Target: TargetDescriptor{
			Type:       p.kind.String(),
			GroupName:  p.groupName,
			GroupMode:  string(p.groupMode),
			FilterMode: string(p.filterMode),
			FilterName: p.filterName,
		},
		Count: count,
	}
}

func (p bulkPlan) describe() string {
	var b strings.Builder
	switch p.kind {
	case assignment.KindAllDevices:
		b.WriteString("All devices")
	case assignment.KindAllUsers:
		b.WriteString("All users")
	default:
		if p.groupMode == assignment.GroupExclude {
			b.WriteString("EXCLUDE: ")
		}
		b.WriteString(p.groupName)
	}
	if p.filterMode != assignment.FilterNone {
		fmt.Fprintf(&b, " [Filter: %s · %s]", p.filterName, p.filterMode)
	}
	return b.String()
}

// Submit runs one bulk request through validation, confirmation, name resolution and
// execution. The first call of a new request only arms the confirmation gate; an identical
// second call executes it.
func (s *BulkService) Submit(ctx context.Context, req BulkRequest) (BulkResult, error) {
	sess, err := s.sessions.Current()
	if err != nil {
		return BulkResult{}, err
	}
	if !sess.SignedIn() {
		return BulkResult{}, ErrNotSignedIn
	}
	appIDs := unique(req.AppIDs)
	if len(appIDs) == 0 {
		return BulkResult{}, ErrNoApps
	}

	release, err := s.sessions.Busy().TryAcquire()
	if err != nil {
		return BulkResult{}, err
	}
	defer release()

	plan, err := parseRequest(req)
	if err != nil {
		return BulkResult{}, err
	}
	for _, id := range appIDs {
		if _, ok := sess.App(id); !ok {
			return BulkResult{}, newServiceError(http.StatusBadRequest, ErrUnknownApp.Code, fmt.Sprintf("%s: %s", ErrUnknownApp.Message, id), ErrUnknownApp)
		}
	}

	log := s.log.WithFields(logrus.Fields{"tenant": sess.Tenant.Tenant, "operation": plan.op})
	gate := sess.Gate(plan.op)
	fp := plan.fingerprint(len(appIDs))
	if !gate.Request(fp) {
		recordBatch(plan.op, BulkPrepared)
		log.WithField("pending", fp.String()).Info("bulk request prepared")
		return BulkResult{
			Status:      BulkPrepared,
			Message:     fmt.Sprintf("Prepared: %s %s -> %s for %d app(s). Repeat the same request to confirm.", plan.op, plan.intent, plan.describe(), len(appIDs)),
			Pending:     &fp,
			TargetLabel: plan.describe(),
		}, nil
	}

	// A resolution failure leaves the gate armed, so a corrected retry of the same
	// request does not need another confirmation.
	target, err := s.resolveTarget(ctx, sess, plan)
	if err != nil {
		log.WithError(err).Warn("target resolution failed")
		return BulkResult{}, err
	}
	gate.Fire()

	if pending := sess.Assignments.Pending(appIDs); len(pending) > 0 {
		if err := sess.Assignments.Refresh(ctx, pending); err != nil {
			log.WithError(err).Warn("unconfirmed assignments could not be reconciled before the batch")
		}
	}

	executor := NewBulkExecutor(sess.Directory, sess.Assignments, s.bus, sess.AppName, log)
	result := BulkResult{TargetLabel: target.Label(sess)}

	if plan.op == OperationAssign {
		part := NewConflictResolver(sess.Assignments).Partition(appIDs, plan.intent, target.Key())
		if len(part.Conflicting) > 0 {
			for _, id := range part.Conflicting {
				result.Conflicting = append(result.Conflicting, sess.AppName(id))
			}
			result.ConflictSummary = fmt.Sprintf("%d app(s) already have this target with a different intent and were skipped: %s",
				len(part.Conflicting), SummarizeNames(result.Conflicting))
			log.WithField("conflicts", len(part.Conflicting)).Warn("conflicting assignments skipped")
		}
		if len(part.Assignable) == 0 {
			recordBatch(plan.op, BulkAborted)
			result.Status = BulkAborted
			result.Message = "Nothing to assign: every selected app already has this target with a different intent."
			return result, nil
		}
		appIDs = part.Assignable
	}

	outcome := executor.Apply(ctx, plan.op, plan.intent, target, appIDs)
	recordBatch(plan.op, BulkExecuted)
	result.Status = BulkExecuted
	result.Outcome = &outcome
	result.Message = summarizeOutcome(outcome, result.TargetLabel)
	return result, nil
}

func (s *BulkService) resolveTarget(ctx context.Context, sess *Session, p bulkPlan) (assignment.Target, error) {
	filter := assignment.NoFilter
	var groupID string
	if p.kind == assignment.KindGroup {
		g, err := sess.GroupResolver.Resolve(ctx, p.groupName)
		if err != nil {
			return assignment.Target{}, err
		}
		groupID = g.ID
	}
	if p.filterMode != assignment.FilterNone {
		f, err := sess.FilterResolver.Resolve(ctx, p.filterName)
		if err != nil {
			return assignment.Target{}, err
		}
		if filter, err = assignment.NewFilter(p.filterMode, f.ID); err != nil {
			return assignment.Target{}, invalidRequest("%v", err)
		}
	}

	switch p.kind {
	case assignment.KindAllDevices:
		return assignment.AllDevices(filter), nil
	case assignment.KindAllUsers:
		return assignment.AllUsers(filter), nil
	default:
		t, err := assignment.Group(groupID, p.groupMode, filter)
		if err != nil {
			return assignment.Target{}, invalidRequest("%v", err)
		}
		return t, nil
	}
}

func summarizeOutcome(o Outcome, label string) string {
	verb := "Assigned"
	if o.Operation == OperationRemove {
		verb = "Removed"
	}
	msg := fmt.Sprintf("%s %s -> %s: %d succeeded, %d failed", verb, o.Intent, label, o.SuccessCount, o.ErrorCount)
	if o.Operation == OperationRemove {
		msg += fmt.Sprintf(", %d without a matching assignment", o.NoMatchCount)
	}
	return msg + "."
}

// RemoveAssignment deletes a single assignment by id. No confirmation is required.
func (s *BulkService) RemoveAssignment(ctx context.Context, appID, assignmentID string) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	if !sess.SignedIn() {
		return ErrNotSignedIn
	}
	if _, ok := sess.App(appID); !ok {
		return newServiceError(http.StatusNotFound, ErrUnknownApp.Code, ErrUnknownApp.Message, ErrUnknownApp)
	}
	if strings.TrimSpace(assignmentID) == "" {
		return invalidRequest("assignment id is required")
	}
	if assignment.IsSynthesizedID(assignmentID) {
		return invalidRequest("assignment %s is not yet confirmed by the directory, refresh the app first", assignmentID)
	}

	release, err := s.sessions.Busy().TryAcquire()
	if err != nil {
		return err
	}
	defer release()

	log := s.log.WithFields(logrus.Fields{"tenant": sess.Tenant.Tenant, "app_id": appID, "assignment_id": assignmentID})
	if err := sess.Directory.DeleteAssignment(ctx, appID, assignmentID); err != nil {
		recordMutation(OperationRemove, false)
		log.WithError(err).Error("assignment removal failed")
		return errors.Wrapf(err, "remove assignment %s of %s", assignmentID, sess.AppName(appID))
	}
	recordMutation(OperationRemove, true)
	sess.Assignments.RemoveMatching(appID, MatchByID(assignmentID))
	log.Info("assignment removed")
	return nil
}
