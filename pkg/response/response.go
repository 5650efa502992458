package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response represents a standard API response structure
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Status     string      `json:"status"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains pagination metadata
type Pagination struct {
	CurrentPage int64 `json:"current_page"`
	TotalPages  int64 `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	PerPage     int64 `json:"per_page"`
}

// Success sends a successful JSON response
func Success(w http.ResponseWriter, data interface{}, message string) {
	JSON(w, Response{Status: "success", Message: message, Data: data}, http.StatusOK)
}

// Error sends an error JSON response
func Error(w http.ResponseWriter, message string, statusCode int) {
	JSON(w, Response{Status: "error", Message: message, Error: message}, statusCode)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusBadRequest)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusNotFound)
}

func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusTooManyRequests)
}

// InternalServerError sends a 500 Internal Server Error response
func InternalServerError(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusInternalServerError)
}

// BadGateway reports a failed upstream detector.
func BadGateway(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusBadGateway)
}

func ServiceUnavailable(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusServiceUnavailable)
}

// Paginated sends a paginated response
func Paginated(w http.ResponseWriter, data interface{}, pagination Pagination) {
	JSON(w, PaginatedResponse{Status: "success", Data: data, Pagination: pagination}, http.StatusOK)
}

// JSON sends a custom JSON response with specified status code
func JSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}
