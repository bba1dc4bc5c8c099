package main

import (
	"context"
	"errors"
	"strings"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
)

// openSession selects the tenant and signs in. Assignments are loaded only for the
// apps a command works on.
func (rt *runtime) openSession(ctx context.Context) (*services.Session, error) {
	ref := strings.TrimSpace(rt.tenant)
	if ref == "" {
		ref = strings.TrimSpace(rt.conf.DefaultTenant)
	}
	if ref == "" {
		return nil, withCode(exitUsage, errors.New("--tenant is required (or set DEFAULT_TENANT)"))
	}
	desc, err := rt.tenants().Find(ref)
	if err != nil {
		return nil, err
	}
	if _, err := rt.sessions().SelectTenant(desc); err != nil {
		return nil, err
	}
	return rt.sessions().SignIn(ctx, false)
}

// appSelection picks apps by explicit id or by the platform/text filter.
type appSelection struct {
	ids      []string
	platform string
	match    string
}

func (s appSelection) filter() app.Filter {
	return app.Filter{Platform: app.Platform(strings.ToLower(s.platform)), Text: s.match}
}

func (s appSelection) empty() bool {
	return len(s.ids) == 0 && s.platform == "" && s.match == ""
}

func (s appSelection) resolve(sess *services.Session) []string {
	if len(s.ids) > 0 {
		return s.ids
	}
	if s.empty() {
		return nil
	}
	apps := s.filter().Apply(sess.Apps())
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ID)
	}
	return ids
}
