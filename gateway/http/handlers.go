package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/csakilan/FoundryBackend/health"
)

// healthBanner is the reply the canvas editor has keyed on since the
// first deploy.
const healthBanner = "this shi working dawg"

type healthResponse struct {
	Message string         `json:"message"`
	Health  *health.Status `json:"health,omitempty"`
}

// handleHealth answers the liveness probe. With a monitor attached it
// runs the registered checks and reports 503 when any dependency is
// unhealthy; degraded still answers 200 so transient backend wobbles
// do not flap load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeJSON(w, http.StatusOK, healthResponse{Message: healthBanner})
		return
	}
	st := s.monitor.RunChecks(r.Context(), "foundry")
	code := http.StatusOK
	if st.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, healthResponse{Message: healthBanner, Health: &st})
}

// handleDeploy compiles and submits the posted canvas. The response is
// the deployment result: identifiers, initial status and any key
// material created on the way.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	cv, err := s.readCanvas(w, r)
	if err != nil {
		return
	}
	res, err := s.deployer.Deploy(r.Context(), cv)
	if err != nil {
		s.serveError(w, r, err)
		return
	}
	s.logger.Info("deployment submitted", "deployment", res.DeploymentID,
		"stack", res.StackName)
	s.writeJSON(w, http.StatusOK, res)
}

// handleStatus reports the current state of a deployed stack.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stackName := mux.Vars(r)["stackName"]
	status, err := s.deployer.Status(r.Context(), stackName)
	if err != nil {
		s.serveError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleEstimate compiles the posted canvas and prices the resulting
// document. The region query parameter overrides the configured
// default. Estimates are advisory; pricing outages answer 503 and the
// caller retries.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if s.estimator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cost estimates are not available")
		return
	}
	cv, err := s.readCanvas(w, r)
	if err != nil {
		return
	}
	doc, err := s.compiler.Compile(cv)
	if err != nil {
		s.serveError(w, r, err)
		return
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		region = s.cfg.Region
	}
	est, err := s.estimator.EstimateDocument(r.Context(), doc, region)
	if err != nil {
		s.serveError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.writeError(w, http.StatusNotFound, "no such route")
}
