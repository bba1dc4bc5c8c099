package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/presentation/controllers/dtos"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/application"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/composables"
)

const requestIDHeader = "X-Request-Id"

type IntuneAPIController struct {
	tenants     *services.TenantService
	sessions    *services.SessionManager
	bulk        *services.BulkService
	suggestions *services.SuggestionService
	export      *services.ExportService
	apiPrefix   string
}

func NewIntuneAPIController(app application.Application) application.Controller {
	return &IntuneAPIController{
		tenants:     app.Service(services.TenantService{}).(*services.TenantService),
		sessions:    app.Service(services.SessionManager{}).(*services.SessionManager),
		bulk:        app.Service(services.BulkService{}).(*services.BulkService),
		suggestions: app.Service(services.SuggestionService{}).(*services.SuggestionService),
		export:      app.Service(services.ExportService{}).(*services.ExportService),
		apiPrefix:   "/api/intune",
	}
}

func (c *IntuneAPIController) Key() string {
	return c.apiPrefix
}

func (c *IntuneAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/tenants", c.ListTenants).Methods(http.MethodGet)
	api.HandleFunc("/session", c.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/session/tenant", c.SelectTenant).Methods(http.MethodPost)
	api.HandleFunc("/session/sign-in", c.SignIn).Methods(http.MethodPost)
	api.HandleFunc("/session/refresh", c.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/session/sign-out", c.SignOut).Methods(http.MethodPost)

	api.HandleFunc("/apps", c.ListApps).Methods(http.MethodGet)
	api.HandleFunc("/apps/{appId}/assignments/{assignmentId}", c.RemoveAssignment).Methods(http.MethodDelete)
	api.HandleFunc("/bulk", c.SubmitBulk).Methods(http.MethodPost)

	api.HandleFunc("/suggestions/groups", c.SuggestGroups).Methods(http.MethodGet)
	api.HandleFunc("/suggestions/filters", c.SuggestFilters).Methods(http.MethodGet)

	api.HandleFunc("/export", c.Export).Methods(http.MethodGet)
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID(r), "INTUNE_INVALID_BODY", "invalid json body", nil)
		return false
	}
	return true
}

type sessionResponse struct {
	Tenant   string `json:"tenant,omitempty"`
	Name     string `json:"name,omitempty"`
	SignedIn bool   `json:"signedIn"`
	Apps     int    `json:"apps"`
	Busy     bool   `json:"busy"`
}

func (c *IntuneAPIController) sessionState() sessionResponse {
	resp := sessionResponse{Busy: c.sessions.Busy().Busy()}
	sess, err := c.sessions.Current()
	if err != nil {
		return resp
	}
	resp.Tenant = sess.Tenant.Tenant
	resp.Name = sess.Tenant.DisplayName()
	resp.SignedIn = sess.SignedIn()
	resp.Apps = len(sess.Apps())
	return resp
}

func (c *IntuneAPIController) ListTenants(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.tenants.List())
}

func (c *IntuneAPIController) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.sessionState())
}

func (c *IntuneAPIController) SelectTenant(w http.ResponseWriter, r *http.Request) {
	var dto dtos.SelectTenantDTO
	if !decode(w, r, &dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, http.StatusBadRequest, requestID(r), services.ErrInvalidRequest.Code, "invalid request", errs)
		return
	}
	desc, err := c.tenants.Find(dto.Tenant)
	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	if _, err := c.sessions.SelectTenant(desc); err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, c.sessionState())
}

func (c *IntuneAPIController) SignIn(w http.ResponseWriter, r *http.Request) {
	var dto dtos.SignInDTO
	if !decode(w, r, &dto) {
		return
	}
	if _, err := c.sessions.SignIn(r.Context(), dto.Load()); err != nil {
		composables.UseLogger(r.Context()).WithError(err).Warn("sign-in failed")
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, c.sessionState())
}

func (c *IntuneAPIController) Refresh(w http.ResponseWriter, r *http.Request) {
	var dto dtos.RefreshDTO
	if !decode(w, r, &dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, http.StatusBadRequest, requestID(r), services.ErrInvalidRequest.Code, "invalid request", errs)
		return
	}
	if err := c.sessions.Refresh(r.Context(), dto.AppIDs); err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, c.sessionState())
}

func (c *IntuneAPIController) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := c.sessions.SignOut(r.Context()); err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, c.sessionState())
}

type assignmentView struct {
	ID        string `json:"id"`
	Intent    string `json:"intent"`
	TargetKey string `json:"targetKey"`
	Label     string `json:"label"`
	// Pending marks an entry created in this session and not yet confirmed by a refresh.
	Pending bool `json:"pending"`
}

type appView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Publisher   string           `json:"publisher"`
	Platform    string           `json:"platform"`
	Type        string           `json:"type"`
	Loaded      bool             `json:"loaded"`
	Assignments []assignmentView `json:"assignments"`
}

func filterFromQuery(r *http.Request) app.Filter {
	q := r.URL.Query()
	return app.Filter{Platform: app.Platform(strings.ToLower(q.Get("platform"))), Text: q.Get("q")}
}

func (c *IntuneAPIController) ListApps(w http.ResponseWriter, r *http.Request) {
	sess, err := c.sessions.Current()
	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	if !sess.SignedIn() {
		writeServiceError(w, requestID(r), services.ErrNotSignedIn)
		return
	}

	apps := filterFromQuery(r).Apply(sess.Apps())
	views := make([]appView, 0, len(apps))
	for _, a := range apps {
		v := appView{
			ID:          a.ID,
			Name:        a.Name(),
			Publisher:   a.Publisher,
			Platform:    a.Platform().Label(),
			Type:        a.TypeName(),
			Loaded:      sess.Assignments.Has(a.ID),
			Assignments: []assignmentView{},
		}
		for _, as := range sess.Assignments.Get(a.ID) {
			v.Assignments = append(v.Assignments, assignmentView{
				ID:        as.ID,
				Intent:    string(as.Intent),
				TargetKey: string(as.Target.Key()),
				Label:     as.Target.Label(sess),
				Pending:   as.IsSynthesized(),
			})
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (c *IntuneAPIController) SubmitBulk(w http.ResponseWriter, r *http.Request) {
	var dto dtos.BulkRequestDTO
	if !decode(w, r, &dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, http.StatusBadRequest, requestID(r), services.ErrInvalidRequest.Code, "invalid request", errs)
		return
	}

	res, err := c.bulk.Submit(r.Context(), dto.ToRequest())
	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	status := http.StatusOK
	if res.Status == services.BulkPrepared {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (c *IntuneAPIController) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := c.bulk.RemoveAssignment(r.Context(), vars["appId"], vars["assignmentId"]); err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suggestionView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toSuggestions(items []domain.NamedObject) []suggestionView {
	out := make([]suggestionView, 0, len(items))
	for _, it := range items {
		out = append(out, suggestionView{ID: it.ID, Name: it.DisplayName})
	}
	return out
}

func (c *IntuneAPIController) SuggestGroups(w http.ResponseWriter, r *http.Request) {
	items, err := c.suggestions.SuggestGroups(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestions(items))
}

func (c *IntuneAPIController) SuggestFilters(w http.ResponseWriter, r *http.Request) {
	items, err := c.suggestions.SuggestFilters(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestions(items))
}

func (c *IntuneAPIController) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := c.export.Export(r.Context(), filterFromQuery(r))
	if err != nil {
		writeServiceError(w, requestID(r), err)
		return
	}
	defer exp.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	if _, err := exp.WriteTo(w); err != nil {
		composables.UseLogger(r.Context()).WithError(err).Error("export write failed")
	}
}
