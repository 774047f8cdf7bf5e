package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/pipeline"
	"github.com/couchcryptid/sst-heatwave-service/internal/tabular"
)

// maxImportBytes caps the size of an uploaded archive table.
const maxImportBytes = 16 << 20

// Service is the heatwave state the API reads from and imports into.
type Service interface {
	ReadinessChecker
	Locations() []domain.Location
	Archive() domain.Archive
	Import(ctx context.Context, rows []domain.Row) (domain.MergeStats, error)
	Detect(location, start, end string) (domain.Series, domain.Detection, error)
	Baseline(location, date string) (pipeline.BaselineLookup, error)
}

type heatwaveResponse struct {
	Location  string           `json:"location"`
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Observed  int              `json:"observed"`
	Detection domain.Detection `json:"detection"`
	Series    domain.Series    `json:"series"`
}

type importResponse struct {
	Merge domain.MergeStats `json:"merge"`
	Dates int               `json:"dates"`
}

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/locations", s.handleLocations)
	mux.HandleFunc("GET /api/v1/heatwaves", s.handleHeatwaves)
	mux.HandleFunc("GET /api/v1/baseline", s.handleBaseline)
	mux.HandleFunc("GET /api/v1/archive.csv", s.handleArchiveExport)
	mux.HandleFunc("POST /api/v1/archive", s.handleArchiveImport)
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Location{"locations": s.svc.Locations()})
}

func (s *Server) handleHeatwaves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := strings.TrimSpace(q.Get("location"))
	if location == "" {
		writeError(w, http.StatusBadRequest, errors.New("location is required"))
		return
	}

	series, det, err := s.svc.Detect(location, q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := heatwaveResponse{
		Location:  series.Location,
		Observed:  series.Observed(),
		Detection: det,
		Series:    series,
	}
	if n := len(series.Dates); n > 0 {
		resp.Start, resp.End = series.Dates[0], series.Dates[n-1]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location, date := strings.TrimSpace(q.Get("location")), strings.TrimSpace(q.Get("date"))
	if location == "" || date == "" {
		writeError(w, http.StatusBadRequest, errors.New("location and date are required"))
		return
	}

	lookup, err := s.svc.Baseline(location, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}

func (s *Server) handleArchiveExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sst-archive.csv"`)
	if err := tabular.WriteArchive(w, s.svc.Archive(), s.svc.Locations()); err != nil {
		s.logger.Error("archive export failed", "error", err, "remote", r.RemoteAddr)
	}
}

func (s *Server) handleArchiveImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	defer body.Close()

	rows, err := tabular.ReadRows(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("read table: %w", err))
		return
	}

	stats, err := s.svc.Import(r.Context(), rows)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Merge: stats, Dates: len(s.svc.Archive())})
}

// writeServiceError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownLocation):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pipeline.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
