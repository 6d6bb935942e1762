package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/otcheredev/equipment-console/internal/apiclient"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderHTML(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps an equipment API failure onto the console's response status
func statusFor(err error) (int, string) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized, apiclient.ErrUnauthorized.Error()
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= http.StatusInternalServerError {
			return http.StatusBadGateway, apiErr.Message
		}
		return apiErr.StatusCode, apiErr.Message
	default:
		return http.StatusBadGateway, "API Request Failed"
	}
}
