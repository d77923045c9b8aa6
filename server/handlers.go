package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/creastat/chat"
	"github.com/creastat/chat/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.codec.Load(r)
	if _, err := s.service.Bind(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.saveSession(w, sess)

	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sess := s.codec.Load(r)

	query, uploads, err := s.readQueryForm(w, r)
	if err != nil {
		s.writeError(w, &chat.ValidationError{Err: err})
		return
	}

	res, err := s.service.Exchange(r.Context(), sess, query, uploads)
	s.saveSession(w, sess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	sess := s.codec.Load(r)
	id, err := s.service.NewChat(r.Context(), sess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveSession(w, sess)
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", ConversationID: id})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	sess := s.codec.Load(r)
	if err := s.service.ClearChat(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// readQueryForm reads the query text and the uploaded files.
// An empty file input arrives as a part with filename="", which
// mime/multipart files under Value rather than File, so it is not an upload.
func (s *Server) readQueryForm(w http.ResponseWriter, r *http.Request) (string, []chat.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	err := r.ParseMultipartForm(s.maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return "", nil, err
		}
		return r.PostFormValue("query"), nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var uploads []chat.Upload
	for _, fh := range r.MultipartForm.File["files"] {
		data, err := readPart(fh)
		if err != nil {
			return "", nil, err
		}
		uploads = append(uploads, chat.Upload{Filename: fh.Filename, Data: data})
	}
	return r.PostFormValue("query"), uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s *Server) saveSession(w http.ResponseWriter, sess *session.Session) {
	if err := s.codec.Save(w, sess); err != nil {
		s.logger.Error().Err(err).Msg("failed to save session cookie")
	}
}

// writeError maps the error taxonomy to a status code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		cfgErr *chat.ConfigurationError
		valErr *chat.ValidationError
		status = http.StatusInternalServerError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		status = http.StatusBadRequest
	default:
		s.logger.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("response encode failed")
	}
}
