package server

import (
	"errors"
	"net/http"

	"pkg.jsn.cam/logmate/internal/store"
	"pkg.jsn.cam/logmate/pkg/logmate/httpx"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) error {
	jobs, err := s.deps.Jobs.List()
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []protocol.Job{}
	}

	httpx.JSON(w, http.StatusOK, protocol.JobListResponse{Jobs: jobs})
	return nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) error {
	job, err := s.getJob(r.PathValue("jobID"))
	if err != nil {
		return err
	}

	httpx.JSON(w, http.StatusOK, job)
	return nil
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) error {
	job, err := s.getJob(r.PathValue("jobID"))
	if err != nil {
		return err
	}
	if job.Status != protocol.JobStatusCompleted || job.Result == nil {
		return httpx.Errorf(http.StatusConflict, "job is %s", job.Status)
	}

	httpx.JSON(w, http.StatusOK, job.Result)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	status := "ok"
	code := http.StatusOK
	if _, err := s.deps.Queue.Len(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	httpx.JSON(w, code, protocol.HealthResponse{
		Status:  status,
		Version: protocol.LogmateVersion,
		Queue:   s.opts.QueueKind,
	})
	return nil
}

func (s *Server) getJob(id string) (protocol.Job, error) {
	job, err := s.deps.Jobs.Get(id)
	if errors.Is(err, store.ErrJobNotFound) {
		return protocol.Job{}, httpx.Errorf(http.StatusNotFound, "job not found")
	}
	return job, err
}
