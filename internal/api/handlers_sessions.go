package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/parser"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

type createSessionRequest struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// handleCreateSession loads a document from a JSON body or a multipart file
// upload and opens a session on it.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	var (
		title, filename string
		doc             *parser.Document
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		title, filename, doc, err = s.readUpload(r)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		var req createSessionRequest
		if err := decodeBody(r.Body, &req); err != nil {
			writeError(w, err)
			return
		}
		if int64(len(req.Text)) > s.cfg.MaxUploadBytes {
			jsonError(w, fmt.Sprintf("text exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		title = req.Title
		doc = &parser.Document{Title: "untitled", Format: "text", Text: req.Text}
		if req.Filename != "" {
			filename = sanitizeFilename(req.Filename)
			doc.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
		}
	}
	if title == "" {
		title = doc.Title
	}

	sess, err := s.sessions.Create(title, filename, doc.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("session created",
		"session_id", sess.ID,
		"format", doc.Format,
		"bytes", len(doc.Text),
	)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) readUpload(r *http.Request) (title, filename string, doc *parser.Document, err error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", "", nil, badRequest("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, badRequest("file is required: %w", err)
	}
	defer file.Close()

	filename = sanitizeFilename(header.Filename)
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", "", nil, &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes}
	}

	doc, err = parser.ParseBytes(data, filename, parser.Options{PDFFallback: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		var unsupported *parser.UnsupportedError
		if errors.As(err, &unsupported) {
			return "", "", nil, err
		}
		return "", "", nil, &requestError{err: err}
	}
	return r.FormValue("title"), filename, doc, nil
}

// session resolves the {sessionID} URL parameter, writing a 404 when it is
// unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.sessions.Get(id)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
	}
	return sess, ok
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.sessions.Delete(id) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	s.log.Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleSection returns text between byte offsets. Offsets are clamped to
// the document; end defaults to the document length.
func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := intParam(q.Get("start"), 0)
	if err != nil {
		writeError(w, badRequest("invalid start: %w", err))
		return
	}
	end, err := intParam(q.Get("end"), -1)
	if err != nil {
		writeError(w, badRequest("invalid end: %w", err))
		return
	}

	var text string
	var length int
	sess.Do(func(doc *document.Context) error {
		length = doc.Len()
		if end < 0 {
			end = length
		}
		text = doc.Section(start, end)
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"start":  start,
		"end":    end,
		"length": length,
		"text":   text,
	})
}

type storeResultRequest struct {
	Value  json.RawMessage `json:"value"`
	Append bool            `json:"append"`
}

// handleStoreResult writes a value into the session's result store. Strings
// become text entries, numbers become number entries and objects are read as
// chunk answers.
func (s *Server) handleStoreResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	var req storeResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := entryFromJSON(req.Value)
	if err != nil {
		writeError(w, &requestError{err: err})
		return
	}

	var state document.StateSummary
	sess.Do(func(doc *document.Context) error {
		if req.Append {
			doc.AppendResult(key, entry)
		} else {
			doc.StoreResult(key, entry)
		}
		state = doc.StateSummary()
		return nil
	})
	writeJSON(w, http.StatusOK, state)
}

func entryFromJSON(raw json.RawMessage) (document.Entry, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return document.Entry{}, fmt.Errorf("invalid value: %w", err)
	}
	switch v := v.(type) {
	case string:
		return document.TextEntry(v), nil
	case float64:
		return document.NumberEntry(v), nil
	case map[string]any:
		var a document.Answer
		if err := json.Unmarshal(raw, &a); err != nil {
			return document.Entry{}, fmt.Errorf("invalid answer: %w", err)
		}
		e := document.AnswerEntry(a)
		return e, e.Validate()
	}
	return document.Entry{}, fmt.Errorf("value must be a string, number or answer object")
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
