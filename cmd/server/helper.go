package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Helper functions for request decoding and JSON responses

const maxBodyBytes = 4 << 20

// errorBody is the uniform error envelope of the API
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	RequestID  string `json:"requestId,omitempty"`
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to write response: %v", err)
	}
}

// errorResponse returns a formatted error response
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorMsg string) {
	fields := logrus.Fields{
		"status":     statusCode,
		"path":       r.URL.Path,
		"request_id": getRequestID(r.Context()),
	}
	if statusCode >= http.StatusInternalServerError {
		logrus.WithFields(fields).Error(errorMsg)
	} else {
		logrus.WithFields(fields).Warn(errorMsg)
	}

	writeJSON(w, statusCode, errorBody{
		StatusCode: statusCode,
		Status:     "error",
		Error:      errorMsg,
		RequestID:  getRequestID(r.Context()),
	})
}

// queryFloat parses a float query parameter or returns the default
func queryFloat(r *http.Request, key string, defaultValue float64) (float64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return parsed, nil
}

// queryInt parses an integer query parameter or returns the default
func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return parsed, nil
}

// queryBool parses a boolean query parameter or returns the default
func queryBool(r *http.Request, key string, defaultValue bool) (bool, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, value)
	}
	return parsed, nil
}
