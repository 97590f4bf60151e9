// Package respond writes the uniform JSON envelope every API route answers with:
// {"success": true, ...} on success and {"success": false, "error": "..."} otherwise.
package respond

import (
	"encoding/json"
	"net/http"
)

type Body map[string]any

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Body{"success": true, "data": data})
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Body{"success": false, "error": msg})
}

// Internal answers 500 and exposes the cause in details.
func Internal(w http.ResponseWriter, msg string, err error) {
	body := Body{"success": false, "error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	JSON(w, http.StatusInternalServerError, body)
}
