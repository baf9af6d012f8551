package sim

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ballotwatch/ballotwatch/pkg/electionapi"
)

// apiError mirrors the backend's structured error payload
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	return e.Message
}

func badRequest(message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: electionapi.CodeBadRequest, Message: message}
}

func unauthorized(message string) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Code: electionapi.CodeUnauthorized, Message: message}
}

func notFound(message string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: electionapi.CodeNotFound, Message: message}
}

func validationError(message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: electionapi.CodeValidation, Message: message}
}

func alreadyVoted(message string) *apiError {
	return &apiError{Status: http.StatusConflict, Code: electionapi.CodeAlreadyVoted, Message: message}
}

func electionClosed(message string) *apiError {
	return &apiError{Status: http.StatusConflict, Code: electionapi.CodeElectionClosed, Message: message}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apiError); ok {
		respondJSON(w, apiErr.Status, apiErr)
		return
	}
	respondJSON(w, http.StatusInternalServerError, &apiError{
		Status:  http.StatusInternalServerError,
		Code:    electionapi.CodeInternalServer,
		Message: "Internal server error",
	})
}

// decodeJSON decodes JSON from request body into the target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return badRequest("Request body is empty")
		}
		return badRequest("Invalid JSON: " + err.Error())
	}
	return nil
}
