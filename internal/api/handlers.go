package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/formatter"
	"github.com/backlinkoo/blog-engine/internal/jobs"
	"github.com/backlinkoo/blog-engine/internal/standardize"
	"github.com/backlinkoo/blog-engine/internal/storage"
	"github.com/backlinkoo/blog-engine/internal/verify"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 4 << 20

type formatRequest struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

type formatResponse struct {
	HTML     string              `json:"html"`
	Fallback bool                `json:"fallback"`
	Applied  []string            `json:"applied"`
	Quality  standardize.Quality `json:"quality"`
	Markdown string              `json:"markdown,omitempty"`
}

func (s *Server) format(w http.ResponseWriter, r *http.Request) {
	if s.formatter == nil {
		writeError(w, http.StatusServiceUnavailable, "formatter unavailable")
		return
	}
	var req formatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	out := s.formatter.Process(req.Content, req.Title)
	resp := formatResponse{
		HTML:     out.HTML,
		Fallback: out.Fallback,
		Applied:  out.Applied,
		Quality:  standardize.Score(out.HTML),
	}
	if resp.Applied == nil {
		resp.Applied = []string{}
	}
	if strings.EqualFold(r.URL.Query().Get("output"), "markdown") {
		md, err := formatter.ToMarkdown(out.HTML)
		if err != nil {
			s.logger.Warn("markdown conversion failed", zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, "markdown conversion failed")
			return
		}
		resp.Markdown = md
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) quality(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	writeJSON(w, http.StatusOK, standardize.Score(req.Content))
}

func (s *Server) standardizePost(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(chi.URLParam(r, "id"))
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}
	params := &jobs.StandardizeParams{PostID: postID, Force: force}
	s.submit(w, r, jobs.QueueItem{Kind: jobs.KindStandardize, Standardize: params},
		map[string]any{"post_id": postID, "force": force})
}

func (s *Server) standardizeDomain(w http.ResponseWriter, r *http.Request) {
	domainID := strings.TrimSpace(chi.URLParam(r, "id"))
	params := &jobs.StandardizeParams{DomainID: domainID}
	s.submit(w, r, jobs.QueueItem{Kind: jobs.KindStandardize, Standardize: params},
		map[string]any{"domain_id": domainID})
}

func (s *Server) submitVerification(w http.ResponseWriter, r *http.Request) {
	var req verify.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submit(w, r, jobs.QueueItem{Kind: jobs.KindVerify, Verify: &req}, map[string]any{
		"source_url":  req.SourceURL,
		"target_url":  req.TargetURL,
		"anchor_text": req.AnchorText,
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, item jobs.QueueItem, params map[string]any) {
	jobID, err := s.enqueueJob(r.Context(), item, params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("submit job failed", zap.String("kind", string(item.Kind)), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) enqueueJob(ctx context.Context, item jobs.QueueItem, params map[string]any) (string, error) {
	if s.jobStore == nil || s.enqueuer == nil {
		return "", errors.New("job pipeline unavailable")
	}
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := jobs.Job{
		ID:        jobID,
		Kind:      item.Kind,
		Status:    jobs.StatusQueued,
		Submitted: s.clock.Now(),
		Params:    params,
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	item.JobID = jobID
	item.Attempt = 1
	if err := s.enqueuer.Enqueue(queueCtx, item); err != nil {
		if updErr := s.jobStore.UpdateJobStatus(context.WithoutCancel(ctx), jobID, jobs.StatusFailed, err.Error(), nil); updErr != nil {
			s.logger.Warn("mark unqueued job failed", zap.String("job_id", jobID), zap.Error(updErr))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.jobStore == nil {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case err != nil:
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
