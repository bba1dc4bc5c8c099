package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

// Failure is one failed mutation, kept for the batch report.
type Failure struct {
	AppID        string `json:"appId"`
	AppName      string `json:"appName"`
	AssignmentID string `json:"assignmentId,omitempty"`
	Status       int    `json:"status,omitempty"`
	Message      string `json:"message"`
}

type Outcome struct {
	Operation    OperationKind     `json:"operation"`
	Intent       assignment.Intent `json:"intent"`
	TargetKey    assignment.Key    `json:"targetKey"`
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	NoMatchCount int               `json:"noMatchCount"`
	Failures     []Failure         `json:"failures,omitempty"`
	Affected     []string          `json:"affected"`
	RefreshError string            `json:"refreshError,omitempty"`
}

// BulkExecutor applies one mutation across apps, strictly one remote call at a time.
type BulkExecutor struct {
	dir     domain.DirectoryClient
	cache   *ReconciliationCache
	bus     eventbus.EventBus
	appName func(appID string) string
	log     *logrus.Entry
}

func NewBulkExecutor(dir domain.DirectoryClient, cache *ReconciliationCache, bus eventbus.EventBus, appName func(string) string, log *logrus.Entry) *BulkExecutor {
	if log == nil {
		log = logging.Discard()
	}
	if appName == nil {
		appName = func(id string) string { return id }
	}
	return &BulkExecutor{dir: dir, cache: cache, bus: bus, appName: appName, log: log}
}

// Apply folds the app sequence into an Outcome, then refreshes exactly the touched apps.
func (e *BulkExecutor) Apply(ctx context.Context, op OperationKind, intent assignment.Intent, target assignment.Target, appIDs []string) Outcome {
	key := target.Key()
	log := e.log.WithFields(logrus.Fields{"operation": op, "intent": intent, "target": key})
	log.WithField("apps", len(appIDs)).Info("bulk operation started")

	acc := Outcome{Operation: op, Intent: intent, TargetKey: key}
	for _, appID := range appIDs {
		switch op {
		case OperationAssign:
			acc = e.assign(ctx, acc, appID, intent, target, log)
		case OperationRemove:
			acc = e.remove(ctx, acc, appID, intent, key, log)
		}
		acc.Affected = append(acc.Affected, appID)
	}

	// The refresh must run even when the caller gave up on the batch.
	if err := e.cache.Refresh(context.WithoutCancel(ctx), acc.Affected); err != nil {
		acc.RefreshError = err.Error()
		log.WithError(err).Warn("post-batch refresh incomplete, affected apps stay pending")
	}

	log.WithFields(logrus.Fields{
		"success":  acc.SuccessCount,
		"errors":   acc.ErrorCount,
		"no_match": acc.NoMatchCount,
	}).Info("bulk operation finished")
	if e.bus != nil {
		e.bus.Publish(&BatchCompletedEvent{Tenant: e.cache.tenant, Outcome: acc})
	}
	return acc
}

func (e *BulkExecutor) fail(acc Outcome, appID, assignmentID string, err error, log *logrus.Entry) Outcome {
	acc.ErrorCount++
	acc.Failures = append(acc.Failures, Failure{
		AppID:        appID,
		AppName:      e.appName(appID),
		AssignmentID: assignmentID,
		Status:       domain.StatusOf(err),
		Message:      err.Error(),
	})
	recordMutation(acc.Operation, false)
	log.WithError(err).WithFields(logrus.Fields{"app_id": appID, "app": e.appName(appID)}).Error("mutation failed")
	return acc
}

func (e *BulkExecutor) assign(ctx context.Context, acc Outcome, appID string, intent assignment.Intent, target assignment.Target, log *logrus.Entry) Outcome {
	if err := e.dir.CreateAssignment(ctx, appID, intent, target); err != nil {
		return e.fail(acc, appID, "", err, log)
	}
	e.cache.OptimisticInsert(appID, intent, target)
	acc.SuccessCount++
	recordMutation(acc.Operation, true)
	return acc
}

func (e *BulkExecutor) remove(ctx context.Context, acc Outcome, appID string, intent assignment.Intent, key assignment.Key, log *logrus.Entry) Outcome {
	var candidates []assignment.Assignment
	for _, a := range e.cache.Get(appID) {
		if a.Matches(intent, key) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		acc.NoMatchCount++
		log.WithField("app_id", appID).Debug("no matching assignment")
		return acc
	}

	for _, c := range candidates {
		switch {
		case c.ID == "":
			acc = e.fail(acc, appID, "", errMissingAssignmentID, log)
			continue
		case c.IsSynthesized():
			acc = e.fail(acc, appID, c.ID, errNotReconciled, log)
			continue
		}
		if err := e.dir.DeleteAssignment(ctx, appID, c.ID); err != nil {
			acc = e.fail(acc, appID, c.ID, err, log)
			continue
		}
		e.cache.RemoveMatching(appID, MatchByID(c.ID))
		acc.SuccessCount++
		recordMutation(acc.Operation, true)
	}
	return acc
}
