package httpapi

import (
	"net/http"

	"github.com/alexanderramin/pipedeck/internal/contract"
	"github.com/go-chi/chi/v5"
)

// GET /v1/pipelines
func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.api.ListPipelines(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	out := make([]contract.Pipeline, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, contract.FromPipeline(p))
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

// GET /v1/pipelines/{id}
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.api.GetPipelineWithStages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, contract.FromPipeline(p))
}

// GET /v1/pipelines/{id}/fields
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	defs, err := s.api.ListFieldDefinitions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	out := make([]contract.FieldDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, contract.FromFieldDefinition(d))
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

// GET /v1/pipelines/{id}/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sums, err := s.api.StageSummaries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	out := make([]contract.StageSummary, 0, len(sums))
	for _, sum := range sums {
		out = append(out, contract.FromStageSummary(sum))
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

// GET /v1/stages/{id}/opportunities?offset=&limit=
func (s *Server) handleListPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.api.ListOpportunitiesPage(r.Context(), chi.URLParam(r, "id"), parsePagination(r))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, contract.FromPage(page))
}

// POST /v1/opportunities
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body contract.OpportunityPayload
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, contract.CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.PipelineID == "" {
		writeError(w, s.logger, http.StatusBadRequest, contract.CodeBadRequest, "pipeline_id is required")
		return
	}
	o, err := s.api.CreateOpportunity(r.Context(), body.ToApp())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, contract.FromOpportunity(o))
}

// GET /v1/opportunities/{id}
func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	o, err := s.api.GetOpportunity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, contract.FromOpportunity(o))
}

// PATCH /v1/opportunities/{id}
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body contract.OpportunityPayload
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, contract.CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	o, err := s.api.UpdateOpportunity(r.Context(), chi.URLParam(r, "id"), body.ToApp())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, contract.FromOpportunity(o))
}

// POST /v1/opportunities/{id}/move
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body contract.MoveRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, contract.CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.StageID == "" {
		writeError(w, s.logger, http.StatusBadRequest, contract.CodeBadRequest, "stage_id is required")
		return
	}
	o, err := s.api.MoveOpportunity(r.Context(), chi.URLParam(r, "id"), body.StageID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, contract.FromOpportunity(o))
}

// GET /v1/opportunities/{id}/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.api.StageHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	out := make([]contract.StageTransition, 0, len(history))
	for _, t := range history {
		out = append(out, contract.FromTransition(t))
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}
