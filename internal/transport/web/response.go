package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avstrong/tours/internal/domain"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

// writeError maps domain errors to status codes. Anything unclassified is
// logged and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if inputErr := domain.IsInputError(err); inputErr != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: inputErr.Error(), Fields: inputErr.Fields()})

		return
	}

	status := http.StatusInternalServerError

	switch {
	case domain.IsAuthError(err) != nil:
		status = http.StatusUnauthorized
	case domain.IsForbiddenError(err) != nil:
		status = http.StatusForbidden
	case domain.IsNotFoundError(err) != nil:
		status = http.StatusNotFound
	case domain.IsConflictError(err) != nil, domain.IsCapacityError(err) != nil:
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.l.LogErrorf("Unhandled error: %v", err.Error())
		s.writeJSON(w, status, errorBody{Error: http.StatusText(status)})

		return
	}

	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		inputErr := domain.NewInputError()

		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			inputErr.AddError(typeErr.Field, "has an invalid type")
		} else {
			inputErr.AddError("body", "must be a valid JSON object")
		}

		return inputErr
	}

	return nil
}

// pathID reads the {id} wildcard. Malformed ids cannot name an existing
// entity, so they are reported as not found.
func pathID(r *http.Request, entity string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewNotFoundError(entity)
	}

	return id, nil
}
