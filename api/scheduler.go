package api

import (
	"errors"
	"net/http"

	"amazon-scraper/scheduler"
)

type schedulerStatusResponse struct {
	Status string                `json:"status"`
	Jobs   []scheduler.JobStatus `json:"jobs"`
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	status := "stopped"
	if s.sched.Running() {
		status = "running"
	}
	writeJSON(w, http.StatusOK, schedulerStatusResponse{
		Status: status,
		Jobs:   s.sched.Jobs(),
	})
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if err := s.sched.Pause(r.Context(), jobID); err != nil {
		writeJobError(w, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully paused job " + jobID})
}

func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if err := s.sched.Resume(r.Context(), jobID); err != nil {
		writeJobError(w, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully resumed job " + jobID})
}

func writeJobError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeError(w, notFound("Job", jobID))
		return
	}
	writeError(w, internalError(err.Error()))
}
