package api

import (
	"errors"
	"net/http"
	"strconv"

	"amazon-scraper/rag"
)

func (s *Server) handleRAGInitialize(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		writeError(w, &apiError{
			status: http.StatusServiceUnavailable,
			detail: "RAG is not configured: missing OpenAI API key",
		})
		return
	}

	count, err := s.rag.Initialize(r.Context())
	if err != nil {
		writeError(w, internalError(err.Error()))
		return
	}
	if count == 0 {
		writeError(w, notFound("Products", "database"))
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Semantic index initialized with " + strconv.Itoa(count) + " products",
	})
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		writeError(w, &apiError{
			status: http.StatusServiceUnavailable,
			detail: "RAG is not configured: missing OpenAI API key",
		})
		return
	}

	question := r.URL.Query().Get("question")
	if question == "" {
		writeError(w, invalidParameter("question", "Must not be empty"))
		return
	}

	answer, err := s.rag.Query(r.Context(), question)
	if err != nil {
		if errors.Is(err, rag.ErrIndexEmpty) {
			writeError(w, invalidParameter("question",
				"Semantic index is empty, call /rag/initialize first"))
			return
		}
		writeError(w, internalError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, answer)
}
