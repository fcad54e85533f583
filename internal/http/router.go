package httpapi

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterReadingRoutes 注册读数 CRUDL 路由
func (r *Router) RegisterReadingRoutes(h *ReadingsHandler) {
	r.Handle("/processed_agent_data", h.ServeHTTP)
	r.Handle("/processed_agent_data/", h.ServeHTTP)
}

// RegisterWSRoutes 注册实时推送路由
func (r *Router) RegisterWSRoutes(h *WSHandler) {
	r.Handle("/ws/", h.ServeHTTP)
}

// RegisterHealthRoutes 存活探针（带 DB ping）；db 可为 nil
func (r *Router) RegisterHealthRoutes(db *sql.DB) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if db != nil {
			if err := db.PingContext(req.Context()); err != nil {
				r.logger.Warn("health check: database unreachable", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
