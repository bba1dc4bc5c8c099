package graph

import (
	"strings"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
)

// Type discriminators of the wire format. They never leave this package.
const (
	typeMobileAppAssignment  = "#microsoft.graph.mobileAppAssignment"
	typeAllDevicesTarget     = "#microsoft.graph.allDevicesAssignmentTarget"
	typeAllLicensedUsers     = "#microsoft.graph.allLicensedUsersAssignmentTarget"
	typeGroupTarget          = "#microsoft.graph.groupAssignmentTarget"
	typeExclusionGroupTarget = "#microsoft.graph.exclusionGroupAssignmentTarget"
)

type targetDTO struct {
	ODataType  string `json:"@odata.type"`
	GroupID    string `json:"groupId,omitempty"`
	FilterID   string `json:"deviceAndAppManagementAssignmentFilterId,omitempty"`
	FilterType string `json:"deviceAndAppManagementAssignmentFilterType,omitempty"`
}

type assignmentDTO struct {
	ID     string    `json:"id"`
	Intent string    `json:"intent"`
	Target targetDTO `json:"target"`
}

type createAssignmentDTO struct {
	ODataType string    `json:"@odata.type"`
	Intent    string    `json:"intent"`
	Target    targetDTO `json:"target"`
}

type mobileAppDTO struct {
	ODataType   string `json:"@odata.type"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Publisher   string `json:"publisher"`
	Developer   string `json:"developer"`
}

type namedObjectDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (d mobileAppDTO) toEntity() app.App {
	publisher := d.Publisher
	if publisher == "" {
		publisher = d.Developer
	}
	return app.App{ID: d.ID, DisplayName: d.DisplayName, Publisher: publisher, TypeTag: d.ODataType}
}

func (d namedObjectDTO) toDomain() domain.NamedObject {
	return domain.NamedObject{ID: d.ID, DisplayName: d.DisplayName}
}

// parseFilter is lenient: unknown modes and modes without an id collapse to no filter.
func parseFilter(d targetDTO) assignment.Filter {
	mode, err := assignment.ParseFilterMode(d.FilterType)
	if err != nil {
		return assignment.NoFilter
	}
	f, err := assignment.NewFilter(mode, d.FilterID)
	if err != nil {
		return assignment.NoFilter
	}
	return f
}

// parseTarget maps the wire union onto assignment.Target. Unknown types are kept as KindOther.
func parseTarget(d targetDTO) assignment.Target {
	filter := parseFilter(d)
	t := strings.ToLower(d.ODataType)
	switch {
	case strings.HasSuffix(t, "alldevicesassignmenttarget"):
		return assignment.AllDevices(filter)
	case strings.HasSuffix(t, "alllicensedusersassignmenttarget"), strings.HasSuffix(t, "allusersassignmenttarget"):
		return assignment.AllUsers(filter)
	case strings.HasSuffix(t, "exclusiongroupassignmenttarget"):
		if g, err := assignment.Group(d.GroupID, assignment.GroupExclude, assignment.NoFilter); err == nil {
			return g
		}
	case strings.HasSuffix(t, "groupassignmenttarget"):
		if g, err := assignment.Group(d.GroupID, assignment.GroupInclude, filter); err == nil {
			return g
		}
	}
	return assignment.Other(d.ODataType, filter)
}

func (d assignmentDTO) toDomain() assignment.Assignment {
	return assignment.Assignment{
		ID:     d.ID,
		Intent: assignment.NormalizeIntent(d.Intent),
		Target: parseTarget(d.Target),
	}
}

func targetToDTO(t assignment.Target) targetDTO {
	var d targetDTO
	switch t.Kind() {
	case assignment.KindAllDevices:
		d.ODataType = typeAllDevicesTarget
	case assignment.KindAllUsers:
		d.ODataType = typeAllLicensedUsers
	case assignment.KindGroup:
		d.ODataType = typeGroupTarget
		if t.IsExclusion() {
			d.ODataType = typeExclusionGroupTarget
		}
		d.GroupID = t.GroupID()
	default:
		d.ODataType = t.RawType()
	}
	if f := t.Filter(); !f.IsNone() {
		d.FilterID = f.ID()
		d.FilterType = string(f.Mode())
	}
	return d
}
