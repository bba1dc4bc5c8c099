package dtos

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/constants"
)

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type BulkRequestDTO struct {
	Operation  string   `json:"operation" validate:"required,oneof=assign remove"`
	Intent     string   `json:"intent" validate:"required"`
	TargetType string   `json:"targetType" validate:"required"`
	GroupName  string   `json:"groupName" validate:"required_if=TargetType group"`
	GroupMode  string   `json:"groupMode" validate:"omitempty,oneof=include exclude"`
	FilterMode string   `json:"filterMode" validate:"omitempty,oneof=none include exclude"`
	FilterName string   `json:"filterName"`
	AppIDs     []string `json:"appIds" validate:"required,min=1,dive,required"`
}

// Ok returns field -> message for every failed rule.
func (d *BulkRequestDTO) Ok() (map[string]string, bool) {
	return validate(d)
}

func (d *BulkRequestDTO) ToRequest() services.BulkRequest {
	return services.BulkRequest{
		Operation:  services.OperationKind(strings.ToLower(d.Operation)),
		Intent:     d.Intent,
		TargetType: d.TargetType,
		GroupName:  d.GroupName,
		GroupMode:  d.GroupMode,
		FilterMode: d.FilterMode,
		FilterName: d.FilterName,
		AppIDs:     d.AppIDs,
	}
}

type SelectTenantDTO struct {
	Tenant string `json:"tenant" validate:"required"`
}

func (d *SelectTenantDTO) Ok() (map[string]string, bool) {
	return validate(d)
}

type SignInDTO struct {
	LoadAssignments *bool `json:"loadAssignments"`
}

// Load defaults to a full load.
func (d *SignInDTO) Load() bool {
	return d.LoadAssignments == nil || *d.LoadAssignments
}

type RefreshDTO struct {
	AppIDs []string `json:"appIds" validate:"omitempty,dive,required"`
}

func (d *RefreshDTO) Ok() (map[string]string, bool) {
	return validate(d)
}

func validate(v any) (map[string]string, bool) {
	errorMessages := map[string]string{}
	errs := constants.Validate.Struct(v)
	if errs == nil {
		return errorMessages, true
	}
	var verrs validator.ValidationErrors
	if ve, ok := errs.(validator.ValidationErrors); ok {
		verrs = ve
	}
	for _, err := range verrs {
		if err.Param() != "" {
			errorMessages[err.Field()] = fmt.Sprintf("failed %s=%s", err.Tag(), err.Param())
			continue
		}
		errorMessages[err.Field()] = "failed " + err.Tag()
	}
	return errorMessages, len(errorMessages) == 0
}
