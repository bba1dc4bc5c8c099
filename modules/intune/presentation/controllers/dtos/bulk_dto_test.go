package dtos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
)

func TestBulkRequestDTO_Ok(t *testing.T) {
	t.Parallel()

	valid := BulkRequestDTO{Operation: "assign", Intent: "required", TargetType: "group", GroupName: "Sales", AppIDs: []string{"a"}}
	errs, ok := valid.Ok()
	assert.True(t, ok)
	assert.Empty(t, errs)

	cases := map[string]BulkRequestDTO{
		"Operation": {Operation: "move", Intent: "required", TargetType: "allDevices", AppIDs: []string{"a"}},
		"GroupName": {Operation: "assign", Intent: "required", TargetType: "group", AppIDs: []string{"a"}},
		"AppIDs":    {Operation: "assign", Intent: "required", TargetType: "allDevices"},
		"GroupMode": {Operation: "assign", Intent: "required", TargetType: "group", GroupName: "G", GroupMode: "both", AppIDs: []string{"a"}},
	}
	for field, dto := range cases {
		t.Run(field, func(t *testing.T) {
			t.Parallel()
			errs, ok := dto.Ok()
			assert.False(t, ok)
			assert.Contains(t, errs, field)
		})
	}
}

func TestBulkRequestDTO_ToRequest(t *testing.T) {
	t.Parallel()

	dto := BulkRequestDTO{Operation: "Remove", Intent: "available", TargetType: "allUsers", FilterMode: "include", FilterName: "Corp", AppIDs: []string{"a", "b"}}
	req := dto.ToRequest()
	assert.Equal(t, services.OperationRemove, req.Operation)
	assert.Equal(t, []string{"a", "b"}, req.AppIDs)
	assert.Equal(t, "Corp", req.FilterName)
}

func TestSignInDTO_Load(t *testing.T) {
	t.Parallel()

	no := false
	assert.True(t, (&SignInDTO{}).Load())
	assert.False(t, (&SignInDTO{LoadAssignments: &no}).Load())
}
