package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorBody is the JSON shape of every error answer.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteJSON writes result as JSON with the given status code.
func WriteJSON(writer http.ResponseWriter, statusCode int, result interface{}) {
	jsonData, err := json.Marshal(result)
	if err != nil {
		WriteError(writer, http.StatusInternalServerError, "failed to marshal response")

		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(jsonData)
}

// HandleJSON writes result with status 200, or err with status 500.
func HandleJSON(writer http.ResponseWriter, result interface{}, err error) {
	if err != nil {
		WriteError(writer, http.StatusInternalServerError, err.Error())

		return
	}

	WriteJSON(writer, http.StatusOK, result)
}

// WriteError writes a JSON error response with the specified HTTP status code.
func WriteError(writer http.ResponseWriter, statusCode int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)

	if jsonData, err := json.Marshal(ErrorBody{Error: message}); err == nil {
		_, _ = writer.Write(jsonData)
	} else {
		_, _ = fmt.Fprintf(writer, `{"success": false, "error": "internal error"}`)
	}
}

// WriteSuccess writes a JSON success response with the specified data.
func WriteSuccess(writer http.ResponseWriter, data interface{}) {
	WriteJSON(writer, http.StatusOK, data)
}

// ParseJSON parses JSON from an io.Reader into the provided target interface.
func ParseJSON(reader io.Reader, target interface{}) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	return nil
}
