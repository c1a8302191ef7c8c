package webui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"reportqa/internal/engine"
	"reportqa/internal/models"
	"reportqa/internal/question"
	"reportqa/internal/report"
	"reportqa/internal/runner"
	"reportqa/internal/session"
	"reportqa/internal/store"
	"reportqa/pkg/ratelimiter"
)

// User-facing messages.
const (
	MessageDocumentReady = "PDF processed successfully"
	MessageNoDocument    = "Please upload and process a PDF file first."
	DefaultQuestion      = "What is this document?"
)

const (
	recentReports    = 20
	historyLimit     = 50
	defaultMaxUpload = 50 << 20
)

// Archive persists batch reports. *store.Store implements it.
type Archive interface {
	SaveReport(ctx context.Context, rep report.Report) (string, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	LoadReport(ctx context.Context, runID string) (report.Report, error)
}

// Config configures the handler.
type Config struct {
	// Engine is the base engine configuration; the document path and the
	// chosen language model are filled per upload.
	Engine          engine.Config
	UploadDir       string
	MaxUploadBytes  int64
	Workers         int
	FailurePolicy   runner.FailurePolicy
	Limiter         ratelimiter.Limiter
	MaxOutputTokens uint64
}

// Server holds the handler state.
type Server struct {
	cfg     Config
	session *session.Session
	archive Archive
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	reports map[string]report.Report
	order   []string
}

// Option configures a Server.
type Option func(*Server)

// WithArchive enables archiving and the history page.
func WithArchive(archive Archive) Option {
	return func(s *Server) {
		s.archive = archive
	}
}

// WithLogger sets the access and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for the tip of the day.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer builds a Server around sess.
func NewServer(cfg Config, sess *session.Session, opts ...Option) (*Server, error) {
	if sess == nil {
		return nil, errors.New("webui: session is required")
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("webui: upload dir is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = runner.FailureRecord
	}
	s := &Server{
		cfg:     cfg,
		session: sess,
		logger:  zap.NewNop(),
		now:     time.Now,
		reports: map[string]report.Report{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler wrapped in recovery and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /document", s.handleDocument)
	mux.HandleFunc("POST /batch", s.handleBatch)
	mux.HandleFunc("GET /batch/{runID}/csv", s.handleDownload)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /api/status", s.handleAPIStatus)
	mux.HandleFunc("POST /api/ask", s.handleAPIAsk)
	return recoverer(s.logger, accessLog(s.logger, mux))
}

func (s *Server) basePage() pageData {
	return pageData{
		Status:    s.session.Status(),
		Languages: models.LanguageIDs(),
		Selected:  s.cfg.Engine.LanguageModelID,
		Embedding: s.cfg.Engine.EmbeddingModelID,
		Tip:       TipOfTheDay(s.now()),
		Question:  DefaultQuestion,
		Archive:   s.archive != nil,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		s.logger.Warn("render page", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, Page(s.basePage()))
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	page := s.basePage()
	fail := func(status int, message string) {
		page.Document = &notice{Error: message}
		page.Status = s.session.Status()
		s.render(w, r, status, Page(page))
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		fail(http.StatusBadRequest, fmt.Sprintf("An error occurred: could not read upload: %v", err))
		return
	}
	cfg := s.cfg.Engine
	if choice := strings.TrimSpace(r.FormValue("language_model")); choice != "" {
		if _, err := models.LookupLanguage(choice); err != nil {
			fail(http.StatusBadRequest, fmt.Sprintf("An error occurred: %v", err))
			return
		}
		cfg.LanguageModelID = choice
	}
	page.Selected = cfg.LanguageModelID

	file, header, err := r.FormFile("pdf")
	if err != nil {
		fail(http.StatusBadRequest, "An error occurred: choose a PDF file to upload")
		return
	}
	defer file.Close()

	path, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("save upload", zap.Error(err))
		fail(http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	if err := s.session.Submit(r.Context(), path, cfg); err != nil {
		fail(http.StatusUnprocessableEntity, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	page.Status = s.session.Status()
	page.Document = &notice{Message: MessageDocumentReady}
	s.render(w, r, http.StatusOK, Page(page))
}

// saveUpload copies an uploaded PDF into the upload dir under its base name.
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		name = "document.pdf"
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	page := s.basePage()
	view := &batchView{}
	page.Batch = view
	fail := func(status int, message string) {
		view.Error = message
		s.render(w, r, status, Page(page))
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		fail(http.StatusBadRequest, fmt.Sprintf("Could not read upload: %v", err))
		return
	}
	file, _, err := r.FormFile("questions")
	if err != nil {
		fail(http.StatusBadRequest, "Upload a CSV file with questions")
		return
	}
	defer file.Close()

	set, err := question.Load(file)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}
	view.Preview = set.Preview(question.PreviewRows)
	view.Total = set.Len()

	rep, err := s.session.RunBatch(r.Context(), set, runner.BatchParams{
		Workers:         s.cfg.Workers,
		FailurePolicy:   s.cfg.FailurePolicy,
		Limiter:         s.cfg.Limiter,
		MaxOutputTokens: s.cfg.MaxOutputTokens,
	})
	if errors.Is(err, runner.ErrEngineNotReady) {
		fail(http.StatusConflict, MessageNoDocument)
		return
	}
	if err != nil {
		s.logger.Warn("batch failed", zap.Error(err))
		fail(http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.remember(rep)
	view.Report = &rep
	if s.archive != nil {
		if _, err := s.archive.SaveReport(r.Context(), rep); err != nil {
			s.logger.Warn("archive report", zap.String("run_id", rep.RunID), zap.Error(err))
			view.Warning = fmt.Sprintf("Results were not archived: %v", err)
		}
	}
	s.logger.Info("batch finished",
		zap.String("run_id", rep.RunID),
		zap.Int("questions", rep.Summary.Total),
		zap.Int("failed", rep.Summary.Failed),
	)
	s.render(w, r, http.StatusOK, Page(page))
}

// remember keeps the most recent reports available for download.
func (s *Server) remember(rep report.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[rep.RunID]; !ok {
		s.order = append(s.order, rep.RunID)
	}
	s.reports[rep.RunID] = rep
	for len(s.order) > recentReports {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) lookup(ctx context.Context, runID string) (report.Report, bool) {
	s.mu.Lock()
	rep, ok := s.reports[runID]
	s.mu.Unlock()
	if ok {
		return rep, true
	}
	if s.archive == nil {
		return report.Report{}, false
	}
	rep, err := s.archive.LoadReport(ctx, runID)
	if err != nil {
		if !errors.Is(err, store.ErrRunNotFound) {
			s.logger.Warn("load archived report", zap.String("run_id", runID), zap.Error(err))
		}
		return report.Report{}, false
	}
	return rep, true
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(r.Context(), r.PathValue("runID"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.DownloadName))
	if err := report.WriteCSV(w, rep); err != nil {
		s.logger.Warn("write csv", zap.String("run_id", rep.RunID), zap.Error(err))
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	page := s.basePage()
	text := r.FormValue("question")
	view := &askView{}
	page.Ask = view
	page.Question = text

	res, err := s.session.AnswerOne(r.Context(), text)
	switch {
	case errors.Is(err, runner.ErrEngineNotReady):
		view.Error = MessageNoDocument
		s.render(w, r, http.StatusConflict, Page(page))
	case err != nil:
		view.Error = fmt.Sprintf("Error answering the question: %v", err)
		s.render(w, r, http.StatusUnprocessableEntity, Page(page))
	default:
		view.Answer = res.Text
		view.Pages = report.FormatPages(res.SourcePages)
		s.render(w, r, http.StatusOK, Page(page))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	view := historyView{Enabled: s.archive != nil}
	if s.archive != nil {
		runs, err := s.archive.ListRuns(r.Context(), historyLimit)
		if err != nil {
			s.logger.Warn("list runs", zap.Error(err))
			view.Error = fmt.Sprintf("Could not read the archive: %v", err)
		}
		view.Runs = runs
	}
	s.render(w, r, http.StatusOK, HistoryPage(view))
}
