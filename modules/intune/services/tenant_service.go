package services

import (
	"net/http"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/serrors"
)

var ErrUnknownTenant = serrors.NewError("INTUNE_UNKNOWN_TENANT", "tenant is not in the catalog")

// TenantService exposes the read-only tenant catalog.
type TenantService struct {
	catalog *tenant.Catalog
}

func NewTenantService(catalog *tenant.Catalog) *TenantService {
	return &TenantService{catalog: catalog}
}

func (s *TenantService) List() []tenant.Descriptor {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.All()
}

// Find looks a tenant up by name or tenant identifier.
func (s *TenantService) Find(ref string) (tenant.Descriptor, error) {
	if s.catalog != nil {
		if d, ok := s.catalog.Find(ref); ok {
			return d, nil
		}
	}
	return tenant.Descriptor{}, newServiceError(http.StatusNotFound, ErrUnknownTenant.Code, ErrUnknownTenant.Message+": "+ref, ErrUnknownTenant)
}
