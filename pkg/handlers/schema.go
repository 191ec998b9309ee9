package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// SchemaHandler exposes the introspected schema.
type SchemaHandler struct {
	schemaService services.SchemaService
	logger        *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(schemaService services.SchemaService, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{schemaService: schemaService, logger: logger}
}

// RegisterRoutes registers the schema routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.Get)
	mux.HandleFunc("POST /api/schema/refresh", h.Refresh)
	mux.HandleFunc("GET /api/schema/tables/{name}", h.GetTable)
}

// Get handles GET /api/schema
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	schema, err := h.schemaService.Schema(r.Context())
	if err != nil {
		h.logger.Error("Failed to load schema", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "schema_unavailable", "The database schema could not be read")
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: schema}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Refresh handles POST /api/schema/refresh
// Re-reads the catalog; conversations keep working against the new description.
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	schema, err := h.schemaService.Refresh(r.Context())
	if err != nil {
		h.logger.Error("Failed to refresh schema", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "schema_unavailable", "The database schema could not be read")
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: schema}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetTable handles GET /api/schema/tables/{name}
// The returned table carries a live row count.
func (h *SchemaHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	table, err := h.schemaService.TableInfo(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "table_not_found", "Table not found: "+name)
			return
		}
		h.logger.Error("Failed to load table info", zap.String("table", name), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "schema_unavailable", "Table information could not be read")
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: table}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *SchemaHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
