package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/admin"
	"replybot/internal/logger"
)

type openAPIDoc struct {
	BasePath string                                `json:"basePath"`
	Paths    map[string]map[string]json.RawMessage `json:"paths"`
}

func TestRegisterDocs_ServesEveryAdminRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	admin.NewHandler(nil, nil, nil, logger.NopLogger()).RegisterRoutes(engine)
	registerDocs(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc openAPIDoc
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)

	for _, route := range engine.Routes() {
		if !strings.HasPrefix(route.Path, doc.BasePath) {
			continue
		}
		path := strings.TrimPrefix(route.Path, doc.BasePath)
		path = strings.ReplaceAll(path, ":key", "{key}")

		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "undocumented path %s", route.Path) {
			assert.Contains(t, ops, strings.ToLower(route.Method), "undocumented %s %s", route.Method, route.Path)
		}
	}
}

func TestRegisterDocs_ServesUI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	registerDocs(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")
}
