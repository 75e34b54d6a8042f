package gateway

import (
	"errors"
	"net/http"

	"tokex/cmd/internal/documenso"
)

// Code is a stable, caller-visible error code.
type Code string

const (
	CodeNotConfigured        Code = "NOT_CONFIGURED"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeInvalidJSON          Code = "INVALID_JSON"
	CodeInvalidBody          Code = "INVALID_BODY"
	CodeLimitExceeded        Code = "LIMIT_EXCEEDED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeOrganisationNotFound Code = "ORGANISATION_NOT_FOUND"
	CodeInvalidSlug          Code = "INVALID_SLUG"
	CodeTeamURLTaken         Code = "TEAM_URL_TAKEN"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeDocumentSendFailed   Code = "DOCUMENT_SEND_FAILED"
	CodeDocumensoAPIError    Code = "DOCUMENSO_API_ERROR"
)

// StatusFor maps a code to its HTTP status and the code actually surfaced.
// Unrecognized codes collapse to 502 DOCUMENSO_API_ERROR.
func StatusFor(code Code) (int, Code) {
	switch code {
	case CodeUnauthorized, CodeInvalidCredentials:
		return http.StatusUnauthorized, code
	case CodeInvalidBody, CodeInvalidRequest, CodeInvalidJSON, CodeLimitExceeded:
		return http.StatusBadRequest, code
	case CodeNotFound, CodeOrganisationNotFound, CodeInvalidSlug:
		return http.StatusNotFound, code
	case CodeTeamURLTaken:
		return http.StatusConflict, code
	case CodeRateLimited:
		return http.StatusTooManyRequests, code
	case CodeNotConfigured:
		return http.StatusInternalServerError, code
	case CodeDocumentSendFailed:
		return http.StatusBadGateway, code
	default:
		return http.StatusBadGateway, CodeDocumensoAPIError
	}
}

// Failure is the single error shape produced by handlers.
type Failure struct {
	Code    Code
	Message string
}

func (f *Failure) Error() string { return string(f.Code) + ": " + f.Message }

func failure(code Code, msg string) *Failure {
	return &Failure{Code: code, Message: msg}
}

// classify turns a downstream error into a Failure. Upstream application error codes are
// honoured only when trusted; otherwise every upstream failure is opaque.
func classify(err error, trustCodes bool) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if he, ok := documenso.AsHTTPError(err); ok && trustCodes && he.Code != "" {
		if _, code := StatusFor(Code(he.Code)); code == Code(he.Code) {
			msg := he.Message
			if msg == "" {
				msg = he.Error()
			}
			return failure(code, msg)
		}
	}
	return failure(CodeDocumensoAPIError, err.Error())
}
