package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/courierimport/internal/core"
	"github.com/JonMunkholm/courierimport/internal/logging"
	"github.com/JonMunkholm/courierimport/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

var errNoFile = errors.New("no file provided")

// multipartOverhead is the room left for form fields and part headers on
// top of the configured file size.
const multipartOverhead = 1 << 20

const defaultHistoryLimit = 50

// tableResponse is one entry of GET /api/tables.
type tableResponse struct {
	core.TableInfo
	Aliases         []string              `json:"aliases,omitempty"`
	IdentifierField core.CanonicalField   `json:"identifierField"`
	Fields          []core.CanonicalField `json:"fields,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	defs := s.service.Tables()
	tables := make([]tableResponse, 0, len(defs))
	for _, def := range defs {
		tables = append(tables, tableResponse{
			TableInfo:       def.Info,
			Aliases:         def.Aliases,
			IdentifierField: def.IdentifierField,
			Fields:          def.Fields,
		})
	}
	writeJSON(w, http.StatusOK, tables)
}

// handleDownloadTemplate serves the header line of a table as a CSV file.
// ?delimiter= takes comma, semicolon or tab; semicolon is the default.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	delim, err := parseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if _, ok := core.Get(tableKey); !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownTable, tableKey), nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, tableKey))
	if err := s.service.Template(w, tableKey, delim); err != nil {
		logging.FromContext(r.Context()).Error("write template", "table", tableKey, "error", err)
	}
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "", "semicolon", ";":
		return ';', nil
	case "comma", ",":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	default:
		return 0, fmt.Errorf("%w: delimiter %q", core.ErrInvalidOption, s)
	}
}

// handleHistory lists import runs, newest first. Query parameters: table,
// since (RFC 3339 or YYYY-MM-DD) and limit.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.HistoryFilter{
		Table: q.Get("table"),
		Limit: parseIntParam(r, "limit", defaultHistoryLimit),
	}
	if since := q.Get("since"); since != "" {
		t, err := parseSince(since)
		if err != nil {
			s.respondError(w, r, err, nil)
			return
		}
		filter.Since = t
	}

	entries, err := s.service.History(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: since %q is not a date", core.ErrInvalidOption, s)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleSuggest ranks the tables an uploaded file could go into.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	file, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	matches := s.service.SuggestTables(file)
	if matches == nil {
		matches = []core.TableMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	file, opts, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	preview, err := s.service.Preview(r.Context(), tableKey, file, opts)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	s.respond(w, r, preview, templates.PreviewSummary(preview))
}

func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	file, opts, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	res, err := s.service.ImportFile(withActor(r.Context(), r), tableKey, file, opts)
	if err != nil {
		var commitErr *core.CommitError
		if errors.As(err, &commitErr) {
			s.respondError(w, r, err, res)
			return
		}
		s.respondError(w, r, err, nil)
		return
	}
	s.respond(w, r, res, templates.ImportResult(res))
}

// handleImportBundle imports a zip archive. Files that fail inside the
// bundle are reported in the result; only an unreadable archive fails
// the request.
func (s *Server) handleImportBundle(w http.ResponseWriter, r *http.Request) {
	file, opts, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	run, err := s.service.ImportBundle(withActor(r.Context(), r), file.Data, opts)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	s.respond(w, r, run, templates.BundleResult(run))
}

// respond writes v as JSON, or the fragment for HTMX requests.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, fragment templ.Component) {
	if !isHTMX(r) {
		writeJSON(w, http.StatusOK, v)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := fragment.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render fragment", "path", r.URL.Path, "error", err)
	}
}

// readImportRequest reads the uploaded file and the run options.
func (s *Server) readImportRequest(w http.ResponseWriter, r *http.Request) (core.RawFile, core.Options, error) {
	file, err := s.readUpload(w, r)
	if err != nil {
		return core.RawFile{}, core.Options{}, err
	}
	opts, err := s.parseOptions(r)
	if err != nil {
		return core.RawFile{}, core.Options{}, err
	}
	return file, opts, nil
}

// readUpload reads the multipart "file" field, bounded by the configured
// maximum file size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.RawFile, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return core.RawFile{}, core.ErrFileTooLarge
		}
		return core.RawFile{}, fmt.Errorf("%w: %v", errNoFile, err)
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return core.RawFile{}, errNoFile
	}
	defer f.Close()

	data, err := core.ReadLimited(f, maxSize)
	if err != nil {
		return core.RawFile{}, fmt.Errorf("%s: %w", header.Filename, err)
	}
	return core.RawFile{Name: header.Filename, Data: data}, nil
}

// parseOptions starts from the configured defaults and applies the
// clearTarget, allowUpdates and identifierField form fields.
func (s *Server) parseOptions(r *http.Request) (core.Options, error) {
	opts := s.service.DefaultOptions()

	for name, dst := range map[string]*bool{
		"clearTarget":  &opts.ClearTarget,
		"allowUpdates": &opts.AllowUpdates,
	} {
		v := r.FormValue(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.Options{}, fmt.Errorf("%w: %s=%q", core.ErrInvalidOption, name, v)
		}
		*dst = b
	}

	if v := r.FormValue("identifierField"); v != "" {
		f, err := core.ParseIdentifierField(v)
		if err != nil {
			return core.Options{}, err
		}
		opts.IdentifierField = f
	}
	return opts, nil
}

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
