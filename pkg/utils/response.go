package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON 以JSON格式写出响应体
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response payload: %v", err)
	}
}

// RespondError 写出统一结构的错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}