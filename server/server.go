// Package server is the minimal visualization HTTP server mentioned in
// spec.md §1 as an "external collaborator": it serves C7's tree/table
// projection as JSON over a chi router. It renders no UI (Non-goal).
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ctrl-q/ctrlq/analyzer"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

// Server serves read-only JSON projections of a Graph.
type Server struct {
	router chi.Router
	graph  *taskgraph.Graph
	log    *zap.SugaredLogger
}

// New builds a Server over graph. The graph is loaded once by the caller
// (ctrlq server loads it from the Repository at startup) and never
// mutated concurrently with serving (§5).
func New(graph *taskgraph.Graph, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	s := &Server{graph: graph, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/api/tasks", s.handleTasks)
	r.Get("/api/edges", s.handleEdges)
	r.Get("/api/tree", s.handleTree)
	r.Get("/api/cycles", s.handleCycles)
	r.Get("/api/duplicate-edges", s.handleDuplicateEdges)

	s.router = r
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	var tasks []taskgraph.Task
	s.graph.Tasks(func(t taskgraph.Task) bool {
		tasks = append(tasks, t)
		return true
	})
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	var edges []taskgraph.Edge
	s.graph.Edges(func(e taskgraph.Edge) bool {
		edges = append(edges, e)
		return true
	})
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	roots := r.URL.Query()["root"]
	if len(roots) == 0 {
		var err error
		roots, err = s.graph.GetRootNodesFromFilter(taskgraph.FilterSpec{TaskIDs: allTaskIDs(s.graph)})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	tree := analyzer.RenderTree(s.graph, roots, -1)
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analyzer.DetectCycles(s.graph))
}

func (s *Server) handleDuplicateEdges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analyzer.DetectDuplicateEdges(s.graph))
}

func allTaskIDs(g *taskgraph.Graph) []string {
	var ids []string
	g.Tasks(func(t taskgraph.Task) bool {
		ids = append(ids, t.ID)
		return true
	})
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DefaultReadTimeout mirrors the teacher's conservative server timeouts.
const DefaultReadTimeout = 15 * time.Second
