package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"invledger/models"
	"invledger/pkg/catalog"
	"invledger/pkg/reconcile"
	"invledger/pkg/store"

	"github.com/gin-gonic/gin"
)

// reconciler is the part of the engine the handlers use.
type reconciler interface {
	Reconcile(ctx context.Context, images []reconcile.Image) (*reconcile.Result, error)
}

// ledgerStore is the persistence the handlers use. *store.Store satisfies it.
type ledgerStore interface {
	SaveLedger(ctx context.Context, l *models.Ledger) error
	GetLedger(ctx context.Context, id uint, owner *uint) (*models.Ledger, error)
	ListLedgers(ctx context.Context, owner *uint, limit int) ([]models.Ledger, error)
	CreateUser(ctx context.Context, username string, hashed []byte, role string) (*models.User, error)
	FindUser(ctx context.Context, username string) (*models.User, error)
}

type server struct {
	engine    reconciler
	catalogs  catalog.Provider
	store     ledgerStore // nil when persistence is disabled
	jwtSecret []byte
	maxUpload int64
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.GET("/healthz", s.healthHandler)
	r.GET("/items", s.itemsHandler)
	r.POST("/process", s.optionalAuth(), s.processHandler)

	r.POST("/register", s.requireStore(), s.registerHandler)
	r.POST("/login", s.requireStore(), s.loginHandler)
	authGroup := r.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.GET("/me", s.meHandler)
	authGroup.GET("/ledgers", s.requireStore(), s.listLedgersHandler)
	authGroup.GET("/ledgers/:id", s.requireStore(), s.getLedgerHandler)
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if len(h) < 8 || h[:7] != "Bearer " {
		return "", false
	}
	return h[7:], true
}

func (s *server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		id, err := s.parseToken(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.Set("identity", id)
		c.Next()
	}
}

// optionalAuth attaches the caller's identity when a token is sent. A bad
// token is still rejected.
func (s *server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		s.jwtAuthMiddleware()(c)
	}
}

func (s *server) requireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (identity, bool) {
	v, ok := c.Get("identity")
	if !ok {
		return identity{}, false
	}
	id, ok := v.(identity)
	return id, ok
}

func (s *server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"catalog_items": s.catalogs.Catalog().Len(),
		"persistence":   s.store != nil,
	})
}

func (s *server) itemsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.catalogs.Catalog().Items()})
}

type processLine struct {
	ItemName   string  `json:"item_name"`
	Quantity   int     `json:"quantity"`
	UnitValue  float64 `json:"unit_value"`
	TotalValue float64 `json:"total_value"`
}

// processHandler reconciles the uploaded screenshots. Failures are logged in
// detail but answered with a generic message.
func (s *server) processHandler(c *gin.Context) {
	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["image"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images uploaded"})
		return
	}
	device := strings.TrimSpace(c.PostForm("device"))
	if device == "" {
		device = "unknown"
	}

	images := make([]reconcile.Image, 0, len(files))
	for _, fh := range files {
		if fh.Size > s.maxUpload {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s too large (max %dMB)", fh.Filename, s.maxUpload>>20)})
			return
		}
		data, err := readUpload(fh)
		if err != nil {
			slog.Error("reading upload failed", "file", fh.Filename, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process images"})
			return
		}
		images = append(images, reconcile.Image{Name: fh.Filename, Data: data})
	}

	res, err := s.engine.Reconcile(c.Request.Context(), images)
	if errors.Is(err, reconcile.ErrNoImages) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images uploaded"})
		return
	}
	if err != nil {
		slog.Error("processing images failed", "device", device, "images", len(images), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process images"})
		return
	}

	results := make([]processLine, 0, len(res.Lines))
	for _, l := range res.Lines {
		results = append(results, processLine{ItemName: l.Item, Quantity: l.Quantity, UnitValue: l.UnitValue, TotalValue: l.Total})
	}
	resp := gin.H{"results": results, "total": res.Total}

	if s.store != nil {
		var owner *uint
		if id, ok := identityFrom(c); ok {
			owner = &id.UserID
		}
		ledger := store.NewLedger(res, device, owner)
		if err := s.store.SaveLedger(c.Request.Context(), ledger); err != nil {
			// The result is still useful without history.
			slog.Error("saving ledger failed", "device", device, "err", err)
		} else {
			resp["ledger_id"] = ledger.ID
		}
	}
	slog.Info("processed upload", "device", device, "images", len(images), "lines", len(res.Lines), "total", res.Total)
	c.JSON(http.StatusOK, resp)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *server) registerHandler(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, store.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errBadRegistration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		slog.Error("register failed", "username", req.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
	}
}

func (s *server) loginHandler(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, errInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("login failed", "username", req.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	token, err := s.issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token, "admin": user.IsAdmin()})
}

func (s *server) meHandler(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing identity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.UserID, "username": id.Username, "role": id.Role})
}

// ownerFilter limits non-admins to their own ledgers.
func ownerFilter(id identity) *uint {
	if id.admin() {
		return nil
	}
	uid := id.UserID
	return &uid
}

func (s *server) listLedgersHandler(c *gin.Context) {
	id, _ := identityFrom(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ledgers, err := s.store.ListLedgers(c.Request.Context(), ownerFilter(id), limit)
	if err != nil {
		slog.Error("listing ledgers failed", "user", id.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, ledgers)
}

func (s *server) getLedgerHandler(c *gin.Context) {
	id, _ := identityFrom(c)
	ledgerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ledger id"})
		return
	}
	ledger, err := s.store.GetLedger(c.Request.Context(), uint(ledgerID), ownerFilter(id))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger not found"})
		return
	}
	if err != nil {
		slog.Error("loading ledger failed", "ledger", ledgerID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, ledger)
}
