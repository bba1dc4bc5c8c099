package services

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

const exportSheet = "Assignments"

var exportHeader = []any{
	"Tenant name", "Tenant", "App name", "Platform", "App type", "Publisher", "Intent",
	"Target type", "Target", "Assignment filter", "Filter mode", "Filter Id", "Assignment Id", "App Id",
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9\-]+`)

type ExportService struct {
	sessions *SessionManager
	now      func() time.Time
	log      *logrus.Entry
}

func NewExportService(sessions *SessionManager, log *logrus.Entry) *ExportService {
	if log == nil {
		log = logging.Discard()
	}
	return &ExportService{sessions: sessions, now: time.Now, log: log}
}

// Export is a rendered workbook.
type Export struct {
	FileName string
	Rows     int
	book     *excelize.File
}

func (e *Export) WriteTo(w io.Writer) (int64, error) {
	return e.book.WriteTo(w)
}

func (e *Export) Close() error {
	return e.book.Close()
}

// FileName builds intune-app-assignments_<tenant>_<yyyy-mm-dd>.xlsx.
func FileName(tenantName string, day time.Time) string {
	safe := unsafeFileChars.ReplaceAllString(tenantName, "_")
	if safe == "" {
		safe = "tenant"
	}
	return fmt.Sprintf("intune-app-assignments_%s_%s.xlsx", safe, day.Format("2006-01-02"))
}

// Export writes one row per assignment of every app matching filter, or one "(none)" row for
// apps without assignments.
func (s *ExportService) Export(ctx context.Context, filter app.Filter) (*Export, error) {
	sess, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	if !sess.SignedIn() {
		return nil, ErrNotSignedIn
	}
	apps := filter.Apply(sess.Apps())
	if len(apps) == 0 {
		return nil, invalidRequest("no apps match the current filters, nothing to export")
	}

	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ID)
	}
	if err := s.sessions.LoadSelection(ctx, ids); err != nil {
		s.log.WithError(err).Warn("some assignments could not be loaded for export")
	}
	s.preloadFilterNames(ctx, sess, ids)

	rows := exportRows(sess, apps)
	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", exportSheet); err != nil {
		_ = book.Close()
		return nil, errors.Wrap(err, "rename sheet")
	}
	if err := book.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		_ = book.Close()
		return nil, errors.Wrap(err, "write header")
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = book.Close()
			return nil, errors.Wrap(err, "cell name")
		}
		if err := book.SetSheetRow(exportSheet, cell, &row); err != nil {
			_ = book.Close()
			return nil, errors.Wrapf(err, "write row %d", i+2)
		}
	}

	name := FileName(sess.Tenant.Name, s.now())
	s.log.WithFields(logrus.Fields{"file": name, "rows": len(rows)}).Info("assignments exported")
	return &Export{FileName: name, Rows: len(rows), book: book}, nil
}

// preloadFilterNames loads the filter listing when an exported assignment references a
// filter whose name is unknown. Failures only leave ids in place of names.
func (s *ExportService) preloadFilterNames(ctx context.Context, sess *Session, appIDs []string) {
	for _, id := range appIDs {
		for _, a := range sess.Assignments.Get(id) {
			fid := a.Target.Filter().ID()
			if fid == "" || sess.Filters.NameOf(fid) != "" {
				continue
			}
			items, err := sess.FilterListing.All(ctx)
			if err != nil {
				s.log.WithError(err).Warn("failed to preload assignment filters for export")
				return
			}
			for _, it := range items {
				sess.Filters.RememberName(it.ID, it.DisplayName)
			}
			return
		}
	}
}

func exportRows(sess *Session, apps []app.App) [][]any {
	var rows [][]any
	for _, a := range apps {
		name := a.DisplayName
		if name == "" {
			name = "(no name)"
		}
		base := []any{sess.Tenant.Name, sess.Tenant.Tenant, name, a.Platform().Label(), a.TypeName(), a.Publisher}

		list := sess.Assignments.Get(a.ID)
		if len(list) == 0 {
			row := append(append([]any{}, base...), "(none)", "", "", "", "", "", "", a.ID)
			rows = append(rows, row)
			continue
		}
		for _, as := range list {
			typeLabel, target := targetColumns(sess, as.Target)
			f := as.Target.Filter()
			filterName, filterMode := "", ""
			if !f.IsNone() {
				filterName = f.ID()
				if n := sess.FilterName(f.ID()); n != "" {
					filterName = n
				}
				filterMode = string(f.Mode())
			}
			row := append(append([]any{}, base...),
				string(as.Intent), typeLabel, target, filterName, filterMode, f.ID(), as.ID, a.ID)
			rows = append(rows, row)
		}
	}
	return rows
}

func targetColumns(sess *Session, t assignment.Target) (string, string) {
	switch t.Kind() {
	case assignment.KindAllDevices:
		return "All devices", ""
	case assignment.KindAllUsers:
		return "All users", ""
	case assignment.KindGroup:
		name := t.GroupID()
		if n := sess.GroupName(t.GroupID()); n != "" {
			name = n
		}
		if t.IsExclusion() {
			return "Group (exclude)", name
		}
		return "Group", name
	default:
		return "Other", t.Label(sess)
	}
}
