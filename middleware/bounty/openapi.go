package bounty

import (
	"net/http"

	"github.com/swaggo/swag"

	"bounty-backend/docs"
	"bounty-backend/middleware"
)

// handleOpenAPI handles GET /v1/openapi.json
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "openapi_unavailable", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
