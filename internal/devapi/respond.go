package devapi

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-school-admin/apimodel"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apimodel.ErrorResponse{Error: msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeValidation(w http.ResponseWriter, fields apimodel.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, apimodel.ErrorResponse{
		Message: "The given data was invalid.",
		Errors:  fields,
	})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
