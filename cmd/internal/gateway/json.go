package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  Code   `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// writeFailure renders f with the status from StatusFor and returns the surfaced code.
func writeFailure(w http.ResponseWriter, f *Failure) Code {
	status, code := StatusFor(f.Code)
	writeJSON(w, status, errorResponse{Error: f.Message, Code: code})
	return code
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) Code {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	return writeFailure(w, failure(CodeRateLimited, "Too many failed attempts"))
}

var (
	errEmptyBody = errors.New("empty body")
	errNotObject = errors.New("body must be a JSON object")
)

// decodeJSON reads exactly one JSON value into dst. Syntax problems map to INVALID_JSON,
// a well-formed value of the wrong shape to INVALID_REQUEST.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) *Failure {
	if r.Body == nil || r.Body == http.NoBody {
		return failure(CodeInvalidJSON, "Invalid JSON body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &typeErr):
			return failure(CodeInvalidRequest, errNotObject.Error())
		case errors.As(err, &tooLarge):
			return failure(CodeInvalidRequest, "Request body too large")
		case errors.Is(err, io.EOF):
			return failure(CodeInvalidJSON, "Invalid JSON body: "+errEmptyBody.Error())
		default:
			return failure(CodeInvalidJSON, "Invalid JSON body")
		}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return failure(CodeInvalidJSON, "Invalid JSON body: extra data after JSON object")
	}
	return nil
}
