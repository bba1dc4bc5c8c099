package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/presentation/controllers/dtos"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/serrors"
)

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	writeJSON(w, status, dtos.APIError{Code: code, Message: message, Meta: meta})
}

var sentinelStatus = map[string]int{
	services.ErrNoTenant.Code:       http.StatusConflict,
	services.ErrNotSignedIn.Code:    http.StatusUnauthorized,
	services.ErrBusy.Code:           http.StatusConflict,
	services.ErrNoApps.Code:         http.StatusBadRequest,
	services.ErrInvalidRequest.Code: http.StatusBadRequest,
	services.ErrUnknownApp.Code:     http.StatusBadRequest,
	services.ErrUnknownTenant.Code:  http.StatusNotFound,
}

// writeServiceError maps service and directory failures onto the error envelope.
func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message, nil)
		return
	}

	var resErr *services.ResolutionError
	if errors.As(err, &resErr) {
		meta := map[string]string{"kind": resErr.Kind, "input": resErr.Input}
		status := http.StatusNotFound
		switch resErr.Reason {
		case services.ReasonAmbiguous:
			status = http.StatusConflict
			meta["candidates"] = strings.Join(resErr.Candidates, "\n")
		case services.ReasonLookupFailed:
			status = http.StatusBadGateway
			if resErr.Status == http.StatusUnauthorized || resErr.Status == http.StatusForbidden {
				status = http.StatusForbidden
			}
			if resErr.Status != 0 {
				meta["remote_status"] = strconv.Itoa(resErr.Status)
			}
		}
		writeAPIError(w, status, requestID, "INTUNE_NAME_"+strings.ToUpper(string(resErr.Reason)), resErr.Error(), meta)
		return
	}

	if code := serrors.CodeOf(err); code != "" {
		if status, ok := sentinelStatus[code]; ok {
			writeAPIError(w, status, requestID, code, err.Error(), nil)
			return
		}
	}

	if status := domain.StatusOf(err); status != 0 {
		writeAPIError(w, http.StatusBadGateway, requestID, "INTUNE_REMOTE_ERROR", err.Error(),
			map[string]string{"remote_status": strconv.Itoa(status)})
		return
	}
	writeAPIError(w, http.StatusInternalServerError, requestID, "INTUNE_INTERNAL", err.Error(), nil)
}
