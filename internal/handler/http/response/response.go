package response

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in ErrorDetail.Code.
const (
	CodeBadRequest            = "BAD_REQUEST"
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeEmployeeNotFound      = "EMPLOYEE_NOT_FOUND"
	CodeEmployeeCodeExists    = "EMPLOYEE_CODE_EXISTS"
	CodeRecordNotFound        = "PAYROLL_RECORD_NOT_FOUND"
	CodeRecordExists          = "PAYROLL_RECORD_EXISTS"
	CodePeriodProcessed       = "PAYROLL_PERIOD_PROCESSED"
	CodeRecordPaid            = "PAYROLL_RECORD_PAID"
	CodeApprovalDecided       = "PAYROLL_APPROVAL_DECIDED"
	CodeVersionConflict       = "PAYROLL_VERSION_CONFLICT"
	CodeProcessingInterrupted = "PAYROLL_PROCESSING_INTERRUPTED"
	CodeTimeout               = "TIMEOUT"
	CodeInternal              = "INTERNAL_SERVER_ERROR"
	codeEncoding              = "ENCODING_ERROR"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	TotalItems int64 `json:"total_items,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_ = json.NewEncoder(w).Encode(Response{
			Error: &ErrorDetail{Code: codeEncoding, Message: "Failed to encode response"},
		})
	}
}

// ========== SUCCESS ==========

func Success(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func SuccessWithMessage(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func Created(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func SuccessWithMeta(w http.ResponseWriter, data interface{}, meta *Meta) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

// ========== ERRORS ==========

// Fail writes an error envelope.
func Fail(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, Response{
		Error: &ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// FailWithData writes an error envelope that still carries a partial result,
// e.g. the summary of a processing run cut short by its deadline.
func FailWithData(w http.ResponseWriter, status int, code, message string, data interface{}) {
	writeJSON(w, status, Response{
		Data:  data,
		Error: &ErrorDetail{Code: code, Message: message},
	})
}

func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	Fail(w, http.StatusBadRequest, CodeBadRequest, message, details)
}

func ValidationError(w http.ResponseWriter, details map[string]string) {
	Fail(w, http.StatusUnprocessableEntity, CodeValidation, "Validation failed", details)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}
