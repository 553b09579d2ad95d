// Package server exposes import sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/logger"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// DefaultMaxUpload bounds the size of an uploaded statement.
const DefaultMaxUpload = 10 << 20

const sampleRows = 5

// Options configures the sessions the server starts.
type Options struct {
	DefaultUser    string // used when a request has no X-User-ID header
	DefaultAccount string
	Currency       string
	Accounts       importer.AccountChecker
	Categorizer    importer.Categorizer
	Profiles       *importer.Registry
	MaxUpload      int64
	Mode           string // gin mode; empty keeps the current one
}

// Server serves the import API.
type Server struct {
	svc  *importer.Service
	opts Options
	log  zerolog.Logger
}

// New creates a Server backed by svc.
func New(svc *importer.Service, opts Options, log zerolog.Logger) *Server {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	return &Server{svc: svc, opts: opts, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.opts.Mode != "" {
		gin.SetMode(s.opts.Mode)
	}
	r := gin.New()
	r.MaxMultipartMemory = s.opts.MaxUpload
	r.Use(recovery(s.log), requestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) {
		success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(identify(s.opts.DefaultUser))

	api.POST("/imports", s.createImport)
	api.GET("/imports/:id", s.getImport)
	api.PUT("/imports/:id/mapping", s.setMapping)
	api.POST("/imports/:id/preview", s.preview)
	api.POST("/imports/:id/commit", s.commit)
	api.POST("/imports/:id/back", s.back)
	api.DELETE("/imports/:id", s.discard)
	api.GET("/batches", s.batches)
	api.GET("/profiles", s.profiles)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listening on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tableView struct {
	Headers   []string   `json:"headers"`
	Delimiter string     `json:"delimiter"`
	HasHeader bool       `json:"has_header"`
	RowCount  int        `json:"row_count"`
	Sample    [][]string `json:"sample"`
	Skipped   []skipView `json:"skipped"`
}

type skipView struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

type sessionView struct {
	ID       string             `json:"id"`
	State    string             `json:"state"`
	Progress int                `json:"progress"`
	Table    *tableView         `json:"table,omitempty"`
	Mapping  model.FieldMapping `json:"mapping"`
	Summary  *importer.Summary  `json:"summary,omitempty"`
}

type txnView struct {
	ID          string  `json:"id"`
	Fingerprint string  `json:"fingerprint"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Merchant    string  `json:"merchant,omitempty"`
	Amount      string  `json:"amount"`
	Type        string  `json:"type"`
	Currency    string  `json:"currency"`
	Balance     *string `json:"balance,omitempty"`
	Category    string  `json:"category,omitempty"`
	RowIndex    int     `json:"row_index"`
}

type previewView struct {
	Transactions   []txnView  `json:"transactions"`
	DuplicateCount int        `json:"duplicate_count"`
	Skipped        []skipView `json:"skipped"`
	TotalRows      int        `json:"total_rows"`
}

type batchView struct {
	ID            string             `json:"id"`
	AccountID     string             `json:"account_id"`
	FileName      string             `json:"file_name"`
	Status        string             `json:"status"`
	TotalRows     int                `json:"total_rows"`
	ImportedRows  int                `json:"imported_rows"`
	DuplicateRows int                `json:"duplicate_rows"`
	SkippedRows   int                `json:"skipped_rows"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Mapping       model.FieldMapping `json:"mapping"`
	CreatedAt     time.Time          `json:"created_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}

func viewSession(sess *importer.Session) sessionView {
	v := sessionView{
		ID:       sess.ID(),
		State:    sess.State().String(),
		Progress: sess.Progress(),
		Mapping:  sess.Mapping(),
		Summary:  sess.Summary(),
	}
	if t := sess.Table(); t != nil {
		tv := &tableView{
			Headers:   t.Headers,
			Delimiter: string(t.Delimiter),
			HasHeader: t.HasHeader,
			RowCount:  t.RowCount(),
			Sample:    [][]string{},
			Skipped:   viewSkips(t.Skipped),
		}
		for i := 0; i < t.RowCount() && i < sampleRows; i++ {
			tv.Sample = append(tv.Sample, t.Record(i))
		}
		v.Table = tv
	}
	return v
}

func viewSkips(errs []importer.ParseError) []skipView {
	out := make([]skipView, len(errs))
	for i, e := range errs {
		out[i] = skipView{Line: e.Line, Column: e.Column, Reason: e.Reason}
	}
	return out
}

func viewTxn(t model.Transaction) txnView {
	v := txnView{
		ID:          t.ID,
		Fingerprint: string(t.Fingerprint),
		Date:        t.DateString(),
		Description: t.Description,
		Merchant:    t.Merchant,
		Amount:      t.Amount.StringFixed(2),
		Type:        string(t.Type),
		Currency:    t.Currency,
		Category:    t.Category,
		RowIndex:    t.RowIndex,
	}
	if t.Balance != nil {
		b := t.Balance.StringFixed(2)
		v.Balance = &b
	}
	return v
}

func viewBatch(b model.ImportBatch) batchView {
	v := batchView{
		ID:            b.ID,
		AccountID:     b.AccountID,
		FileName:      b.FileName,
		Status:        string(b.Status),
		TotalRows:     b.TotalRows,
		ImportedRows:  b.ImportedRows,
		DuplicateRows: b.DuplicateRows,
		SkippedRows:   b.SkippedRows,
		ErrorMessage:  b.ErrorMessage,
		Mapping:       b.Mapping,
		CreatedAt:     b.CreatedAt,
	}
	if !b.CompletedAt.IsZero() {
		c := b.CompletedAt
		v.CompletedAt = &c
	}
	return v
}

// createImport starts a session from a multipart upload with fields
// file, account and optionally profile.
func (s *Server) createImport(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "missing file")
		return
	}
	if fh.Size > s.opts.MaxUpload {
		fail(c, http.StatusRequestEntityTooLarge, CodeTooLarge, fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUpload))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "unreadable file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUpload))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "unreadable file")
		return
	}

	account := c.PostForm("account")
	if account == "" {
		account = s.opts.DefaultAccount
	}
	if account == "" {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "missing account")
		return
	}

	opts := importer.SessionOptions{
		UserID:      c.GetString(ctxUserID),
		AccountID:   account,
		Currency:    s.opts.Currency,
		Categorizer: s.opts.Categorizer,
		Accounts:    s.opts.Accounts,
	}
	if name := c.PostForm("profile"); name != "" {
		p, ok := s.profile(name)
		if !ok {
			fail(c, http.StatusBadRequest, CodeInvalidParam, fmt.Sprintf("unknown profile %q", name))
			return
		}
		opts.Mapping = &p.Mapping
	}

	sess, err := s.svc.Start(opts)
	if err != nil {
		failErr(c, err)
		return
	}
	if err := sess.Upload(fh.Filename, data); err != nil {
		_ = s.svc.Discard(opts.UserID, sess.ID())
		failErr(c, err)
		return
	}

	log := logger.FromContext(c.Request.Context())
	log.Info().
		Str("session_id", sess.ID()).
		Str("user_id", opts.UserID).
		Str("file", fh.Filename).
		Int("rows", sess.Table().RowCount()).
		Msg("statement uploaded")

	success(c, http.StatusCreated, viewSession(sess))
}

func (s *Server) session(c *gin.Context) (*importer.Session, bool) {
	sess, err := s.svc.Get(c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getImport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	success(c, http.StatusOK, viewSession(sess))
}

func (s *Server) setMapping(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var m model.FieldMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "invalid mapping: "+err.Error())
		return
	}
	if err := sess.SetMapping(m); err != nil {
		failErr(c, err)
		return
	}
	success(c, http.StatusOK, viewSession(sess))
}

func (s *Server) preview(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	p, err := sess.Preview(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	v := previewView{
		Transactions:   make([]txnView, len(p.Transactions)),
		DuplicateCount: p.DuplicateCount,
		Skipped:        viewSkips(p.Skipped),
		TotalRows:      p.TotalRows,
	}
	for i, t := range p.Transactions {
		v.Transactions[i] = viewTxn(t)
	}
	success(c, http.StatusOK, v)
}

func (s *Server) commit(c *gin.Context) {
	user := c.GetString(ctxUserID)
	summary, err := s.svc.Commit(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, http.StatusOK, summary)
}

func (s *Server) back(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.Back(); err != nil {
		failErr(c, err)
		return
	}
	success(c, http.StatusOK, viewSession(sess))
}

func (s *Server) discard(c *gin.Context) {
	if err := s.svc.Discard(c.GetString(ctxUserID), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) batches(c *gin.Context) {
	lister, ok := s.svc.Store().(importer.BatchLister)
	if !ok {
		fail(c, http.StatusNotImplemented, CodeServerErr, "store does not keep import history")
		return
	}
	batches, err := lister.Batches(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]batchView, len(batches))
	for i, b := range batches {
		out[i] = viewBatch(b)
	}
	success(c, http.StatusOK, out)
}

func (s *Server) profiles(c *gin.Context) {
	if s.opts.Profiles == nil {
		success(c, http.StatusOK, []importer.Profile{})
		return
	}
	var out []importer.Profile
	for _, name := range s.opts.Profiles.Names() {
		p, _ := s.opts.Profiles.Get(name)
		out = append(out, p)
	}
	success(c, http.StatusOK, out)
}

func (s *Server) profile(name string) (importer.Profile, bool) {
	if s.opts.Profiles == nil {
		return importer.Profile{}, false
	}
	return s.opts.Profiles.Get(name)
}
