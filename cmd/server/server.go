package main

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Simplici0/costcalc/internal/catalog"
	"github.com/Simplici0/costcalc/internal/estimate"
	"github.com/Simplici0/costcalc/internal/geometry"
	"github.com/Simplici0/costcalc/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

type server struct {
	estimator *estimate.Service
	tokens    *tokenSigner
	templates *template.Template
	maxUpload int64
	log       *zap.Logger
}

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

type homeViewData struct {
	baseViewData
	Selected   estimate.Selection
	FileName   string
	VolumeLine string
	Token      string
	Lines      []string
}

type selectionView struct {
	Prefix    string
	Materials []string
	MOQs      []int
	Selected  estimate.Selection
}

func (v homeViewData) Form(prefix string) selectionView {
	return selectionView{
		Prefix:    prefix,
		Materials: catalog.MaterialOptions,
		MOQs:      catalog.MOQOptions,
		Selected:  v.Selected,
	}
}

func newServer(estimator *estimate.Service, tokens *tokenSigner, maxUpload int64, log *zap.Logger) (*server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/home.html")
	if err != nil {
		return nil, err
	}
	return &server{
		estimator: estimator,
		tokens:    tokens,
		templates: tmpl,
		maxUpload: maxUpload,
		log:       log,
	}, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Post("/estimate", s.handleEstimate)
	r.Post("/recalculate", s.handleRecalculate)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, homeViewData{Selected: defaultSelection()})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "SERVING")
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge, "The uploaded file is too large.", homeViewData{Selected: defaultSelection()})
			return
		}
		s.fail(w, r, http.StatusBadRequest, "Invalid form submission.", homeViewData{Selected: defaultSelection()})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	sel, err := parseSelection(r)
	view := homeViewData{Selected: sel}
	if err != nil {
		s.fail(w, r, statusFor(err), messageFor(err), view)
		return
	}

	file, header, err := r.FormFile("model")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "Choose a .stp or .step file to upload.", view)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "Could not read the uploaded file.", view)
		return
	}

	out, err := s.estimator.FromUpload(r.Context(), geometry.Upload{Name: header.Filename, Data: data}, sel)
	s.respond(w, r, sel, out, err)
}

func (s *server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid form submission.", homeViewData{Selected: defaultSelection()})
		return
	}

	sel, selErr := parseSelection(r)
	g, ok := s.tokens.verify(r.PostFormValue("token"))
	if !ok {
		s.fail(w, r, http.StatusBadRequest, "The loaded model has expired. Upload the STEP file again.", homeViewData{Selected: sel})
		return
	}
	if selErr != nil {
		s.respond(w, r, sel, estimate.Outcome{Geometry: g}, selErr)
		return
	}

	out, err := s.estimator.FromVolume(r.Context(), g, sel)
	out.Geometry = g
	s.respond(w, r, sel, out, err)
}

// respond renders an estimate result or its failure. A parsed model stays
// available for recalculation even when pricing failed.
func (s *server) respond(w http.ResponseWriter, r *http.Request, sel estimate.Selection, out estimate.Outcome, err error) {
	view := homeViewData{Selected: sel}
	if out.Geometry != (estimate.Geometry{}) {
		view.FileName = out.Geometry.FileName
		view.VolumeLine = report.ShapeVolume(out.Geometry.VolumeCM3)
		token, signErr := s.tokens.sign(out.Geometry)
		if signErr != nil {
			s.log.Warn("recalculation unavailable", zap.String("file", out.Geometry.FileName), zap.Error(signErr))
		}
		view.Token = token
	}

	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("estimate failed", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		}
		s.fail(w, r, status, messageFor(err), view)
		return
	}

	if wantsText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, strings.Join(out.Lines, "\n")+"\n")
		return
	}

	view.SuccessMessage = report.LoadedMessage
	view.Lines = out.Lines
	s.render(w, r, http.StatusOK, view)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, status int, message string, view homeViewData) {
	if wantsText(r) {
		http.Error(w, message, status)
		return
	}
	view.ErrorMessage = message
	s.render(w, r, status, view)
}

func (s *server) render(w http.ResponseWriter, r *http.Request, status int, data homeViewData) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.Error("render template", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, buf.String())
}

// parseSelection reads the material and moq fields. Membership in the offered
// options is checked by the estimator.
func parseSelection(r *http.Request) (estimate.Selection, error) {
	sel := estimate.Selection{Material: strings.TrimSpace(r.FormValue("material"))}

	raw := strings.TrimSpace(r.FormValue("moq"))
	moq, err := strconv.Atoi(raw)
	if err != nil {
		return sel, fmt.Errorf("%w: moq %q is not a whole number", estimate.ErrValidation, raw)
	}
	sel.MOQ = moq
	return sel, nil
}

func defaultSelection() estimate.Selection {
	return estimate.Selection{Material: catalog.MaterialOptions[0], MOQ: catalog.MOQOptions[0]}
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, estimate.ErrValidation), errors.Is(err, geometry.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, geometry.ErrParseFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrMaterialNotFound), errors.Is(err, catalog.ErrMOQNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDatasetUnavailable), errors.Is(err, catalog.ErrInvalidDataset):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, estimate.ErrValidation):
		return "Select a material from " + strings.Join(catalog.MaterialOptions, ", ") + " and an MOQ from the list."
	case errors.Is(err, geometry.ErrUnsupportedFile):
		return "Only .stp and .step files are accepted."
	case errors.Is(err, geometry.ErrParseFailed):
		return "Failed to load STEP file."
	case errors.Is(err, catalog.ErrMaterialNotFound):
		return "The selected material is not in the reference dataset."
	case errors.Is(err, catalog.ErrMOQNotFound):
		return "The selected MOQ is not in the reference dataset."
	case errors.Is(err, catalog.ErrDatasetUnavailable), errors.Is(err, catalog.ErrInvalidDataset):
		return "The material reference data is unavailable. Try again later."
	default:
		return "Something went wrong while calculating the cost."
	}
}
