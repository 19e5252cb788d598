// Package server exposes scan scoring, peptide annotation and processed
// scans over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/524D/mzannotate/internal/annotate"
	"github.com/524D/mzannotate/internal/mass"
	"github.com/524D/mzannotate/internal/mzidentml"
	"github.com/524D/mzannotate/internal/peptide"
	"github.com/524D/mzannotate/internal/scanindex"
	"github.com/524D/mzannotate/internal/search"
	"github.com/524D/mzannotate/internal/spectrum"
)

// Processor settings per route
const (
	scoreMaxPeaks   = 150
	peptideMaxPeaks = 100
	defaultMaxPeaks = 150
)

// Searcher scores a processed scan against a peptide database
type Searcher interface {
	Score(spec *spectrum.ProcessedSpectrum, q search.Query) []search.Feature
	Len() int
}

// State is built once at startup and shared read-only by all requests
type State struct {
	Scans           *scanindex.Index
	DB              Searcher
	Identifications map[string][]mzidentml.Identification // by scan native id, may be nil
	Annotator       *annotate.Annotator
	// Upper limit for fragment masses passed to the spectrum processor
	MaxFragmentMass float64
}

// Server handles the HTTP routes
type Server struct {
	state  *State
	logger *slog.Logger
}

// New returns a server for state
func New(state *State, logger *slog.Logger) *Server {
	if state.Annotator == nil {
		state.Annotator = annotate.New(spectrum.Closest, annotate.Omit)
	}
	if state.MaxFragmentMass == 0 {
		state.MaxFragmentMass = annotate.DefaultMassCeiling
	}
	return &Server{state: state, logger: logger}
}

// ServeMux returns the routes without middleware
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /spectrum/{scan_id}", s.scoreSpectrum)
	mux.HandleFunc("POST /spectrum/{scan_id}/peptide", s.scoreSpectrumPeptide)
	mux.HandleFunc("GET /spectrum/{scan_id}", s.getSpectrum)
	mux.HandleFunc("GET /spectrum/{scan_id}/identifications", s.getIdentifications)
	mux.HandleFunc("GET /healthz", s.health)
	return mux
}

// Handler returns the routes wrapped in logging, CORS and compression
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.logger, CORS(Compress(s.ServeMux())))
}

// ScoreRequest is the body of POST /spectrum/{scan_id}
type ScoreRequest struct {
	PrecursorTolerance mass.Tolerance `json:"precursor_tolerance"`
	FragmentTolerance  mass.Tolerance `json:"fragment_tolerance"`
	ReportPSMs         int            `json:"report_psms"`
	Chimera            bool           `json:"chimera"`
	Deisotope          bool           `json:"deisotope"`
}

// PeptideRequest is the body of POST /spectrum/{scan_id}/peptide
type PeptideRequest struct {
	Sequence      string             `json:"sequence"`
	Modifications map[string]float64 `json:"modifications"`
	Nterm         *float64           `json:"nterm"`
	FragmentTol   *mass.Tolerance    `json:"fragment_tol"`
	// Accepted as an alias of fragment_tol
	FragmentTolerance *mass.Tolerance `json:"fragment_tolerance"`
	Deisotope         *bool           `json:"deisotope"`
}

// SpectrumResponse is the body returned by GET /spectrum/{scan_id}
type SpectrumResponse struct {
	Scan             int       `json:"scan"`
	Level            int       `json:"level"`
	MonoisotopicMass *float64  `json:"monoisotopic_mass"`
	Charge           *int      `json:"charge"`
	RT               float64   `json:"rt"`
	TotalIonCurrent  float64   `json:"total_ion_current"`
	Mz               []float64 `json:"mz"`
	Intensity        []float64 `json:"intensity"`
}

// IdentificationResponse is one element of GET /spectrum/{scan_id}/identifications
type IdentificationResponse struct {
	Peptide       string                 `json:"peptide"`
	Rank          int                    `json:"rank"`
	Charge        int                    `json:"charge"`
	PassThreshold bool                   `json:"pass_threshold"`
	Scores        []mzidentml.CVParam    `json:"scores"`
	Peaks         []annotate.MatchedPeak `json:"peaks"`
}

func scanID(r *http.Request) (int, error) {
	v := r.PathValue("scan_id")
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: invalid scan id %q", ErrBadRequest, v)
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// processed resolves scan id and runs the spectrum processor on it
func (s *Server) processed(id int, p spectrum.Processor) (spectrum.ProcessedSpectrum, error) {
	raw, err := s.state.Scans.Resolve(id)
	if err != nil {
		return spectrum.ProcessedSpectrum{}, err
	}
	return p.Process(raw), nil
}

// processedMS2 is processed, but fails for scans other than MS2
func (s *Server) processedMS2(id int, p spectrum.Processor) (spectrum.ProcessedSpectrum, error) {
	spec, err := s.processed(id, p)
	if err != nil {
		return spec, err
	}
	if spec.Level != 2 {
		return spec, fmt.Errorf("scan %d level %d: %w", id, spec.Level, ErrInvalidLevel)
	}
	return spec, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		writeError(w, fmt.Errorf("%w: %v", ErrSerialization, err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) scoreSpectrum(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("score_spectrum", "scan_id", id)

	var req ScoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.state.DB == nil {
		writeError(w, fmt.Errorf("%w: no peptide database loaded", ErrBadRequest))
		return
	}
	spec, err := s.processedMS2(id, spectrum.NewProcessor(scoreMaxPeaks, s.state.MaxFragmentMass, req.Deisotope))
	if err != nil {
		writeError(w, err)
		return
	}

	features := s.state.DB.Score(&spec, search.Query{
		PrecursorTolerance: req.PrecursorTolerance,
		FragmentTolerance:  req.FragmentTolerance,
		ReportPSMs:         req.ReportPSMs,
		Chimera:            req.Chimera,
	})
	s.logger.Info("score_spectrum", "scan_id", id, "results", len(features))
	writeJSON(w, features)
}

func (s *Server) scoreSpectrumPeptide(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req PeptideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("score_spectrum_peptide", "scan_id", id, "sequence", req.Sequence)

	tol := req.FragmentTol
	if tol == nil {
		tol = req.FragmentTolerance
	}
	if tol == nil {
		writeError(w, fmt.Errorf("%w: missing fragment_tol", ErrBadRequest))
		return
	}

	deisotope := req.Deisotope != nil && *req.Deisotope
	spec, err := s.processedMS2(id, spectrum.NewProcessor(peptideMaxPeaks, s.state.MaxFragmentMass, deisotope))
	if err != nil {
		writeError(w, err)
		return
	}

	pep, err := peptide.New(req.Sequence)
	if err != nil {
		writeError(w, err)
		return
	}
	for residue, delta := range req.Modifications {
		if len(residue) != 1 {
			writeError(w, fmt.Errorf("%w: modification key %q is not a residue", ErrBadRequest, residue))
			return
		}
		pep.StaticMod(residue[0], delta)
	}
	if req.Nterm != nil {
		pep.SetNtermMod(*req.Nterm)
	}

	peaks := s.state.Annotator.Annotate(pep, &spec, *tol)
	s.logger.Info("score_spectrum_peptide", "scan_id", id, "results", len(peaks), "matched", annotate.CountMatched(peaks))
	writeJSON(w, peaks)
}

func (s *Server) getSpectrum(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("get_spectrum", "scan_id", id)

	q := r.URL.Query()
	deisotope := false
	if v := q.Get("deisotope"); v != "" {
		if deisotope, err = strconv.ParseBool(v); err != nil {
			writeError(w, fmt.Errorf("%w: deisotope %q", ErrBadRequest, v))
			return
		}
	}
	maxPeaks := defaultMaxPeaks
	if v := q.Get("max_peaks"); v != "" {
		if maxPeaks, err = strconv.Atoi(v); err != nil || maxPeaks < 0 {
			writeError(w, fmt.Errorf("%w: max_peaks %q", ErrBadRequest, v))
			return
		}
	}

	spec, err := s.processed(id, spectrum.NewProcessor(maxPeaks, s.state.MaxFragmentMass, deisotope))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, spectrumResponse(&spec))
}

func spectrumResponse(spec *spectrum.ProcessedSpectrum) SpectrumResponse {
	resp := SpectrumResponse{
		Scan:            spec.ScanID,
		Level:           spec.Level,
		RT:              spec.RetentionTime,
		TotalIonCurrent: spec.TotalIonCurrent,
		Mz:              make([]float64, len(spec.Peaks)),
		Intensity:       make([]float64, len(spec.Peaks)),
	}
	if z := spec.PrecursorCharge(0); z > 0 {
		m := (spec.Precursors[0].Mz - mass.Proton) * float64(z)
		resp.Charge = &z
		resp.MonoisotopicMass = &m
	}
	for i, p := range spec.Peaks {
		resp.Mz[i] = p.Mass + mass.Proton
		resp.Intensity[i] = p.Intensity
	}
	return resp
}

func (s *Server) getIdentifications(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("get_identifications", "scan_id", id)

	tol := mass.PPMTolerance(-20, 20)
	if v := r.URL.Query().Get("fragment_ppm"); v != "" {
		ppm, err := strconv.ParseFloat(v, 64)
		if err != nil || ppm < 0 {
			writeError(w, fmt.Errorf("%w: fragment_ppm %q", ErrBadRequest, v))
			return
		}
		tol = mass.PPMTolerance(-ppm, ppm)
	}

	raw, err := s.state.Scans.Resolve(id)
	if err != nil {
		writeError(w, err)
		return
	}
	spec := spectrum.NewProcessor(peptideMaxPeaks, s.state.MaxFragmentMass, false).Process(raw)

	resp := make([]IdentificationResponse, 0)
	for _, ident := range s.state.Identifications[raw.NativeID] {
		pep, err := ident.Peptide()
		if err != nil {
			writeError(w, err)
			return
		}
		// annotate with the charge of the identification
		annotated := spec
		if ident.Charge > 0 {
			annotated.Precursors = []spectrum.Precursor{{Mz: ident.ExperimentalMz, Charge: ident.Charge}}
		}
		resp = append(resp, IdentificationResponse{
			Peptide:       ident.Sequence,
			Rank:          ident.Rank,
			Charge:        ident.Charge,
			PassThreshold: ident.PassThreshold,
			Scores:        ident.Cv,
			Peaks:         s.state.Annotator.Annotate(pep, &annotated, tol),
		})
	}
	s.logger.Info("get_identifications", "scan_id", id, "results", len(resp))
	writeJSON(w, resp)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	peptides := 0
	if s.state.DB != nil {
		peptides = s.state.DB.Len()
	}
	writeJSON(w, map[string]any{
		"status":   "ok",
		"scans":    s.state.Scans.Len(),
		"peptides": peptides,
	})
}
