package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hisabworks/hisab_backend/appctx"
	"github.com/hisabworks/hisab_backend/config"
	"github.com/hisabworks/hisab_backend/middlewares"
	"github.com/hisabworks/hisab_backend/models"
	"github.com/hisabworks/hisab_backend/tally"
	"github.com/hisabworks/hisab_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// respondError maps the model layer's typed errors onto HTTP status codes:
// validation 400, security 403, conflict 409, not-found 404, anything else
// 500 with the detail kept out of the response body.
func respondError(c *gin.Context, err error) {
	logger := config.GetLogger()
	switch {
	case utils.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsSecurity(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case utils.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		config.LogError(logger, "server.go", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func loginHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		token, err := models.Login(c.Request.Context(), db, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func postVoucherHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.VoucherInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		// The engine trusts its caller on balance; user input is checked here.
		if err := models.ValidateBalancedEntries(input.AccountingEntries); err != nil {
			respondError(c, err)
			return
		}
		voucher, err := models.PostVoucher(c.Request.Context(), db, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, voucher)
	}
}

func createGrnHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewGrn
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		grn, err := models.CreateGRN(c.Request.Context(), db, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, grn)
	}
}

func createMasterHandler[I any, O any](db *gorm.DB, create func(context.Context, *gorm.DB, *I) (O, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input I
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		out, err := create(c.Request.Context(), db, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// getCollectionHandler owns the whole GET /api/:collection position in the
// route tree (gin forbids static siblings of a wildcard segment), so the
// ledgers-suggest endpoint is dispatched here too.
func getCollectionHandler(db *gorm.DB) gin.HandlerFunc {
	suggest := suggestLedgerHandler(db)
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			out interface{}
			err error
		)
		switch c.Param("collection") {
		case "ledgers-suggest":
			suggest(c)
			return
		case "groups":
			out, err = models.GetAllGroups(ctx, db)
		case "ledgers":
			out, err = models.GetAllLedgers(ctx, db)
		case "items":
			out, err = models.GetAllItems(ctx, db)
		case "batches":
			out, err = models.GetAllBatches(ctx, db)
		case "grns":
			out, err = models.GetAllGrns(ctx, db)
		case "vouchers":
			out, err = models.GetAllVouchers(ctx, db)
		case "histories":
			out, err = models.GetAllHistories(ctx, db)
		case "users":
			out, err = models.GetAllUsers(ctx, db)
		case "settings":
			out, err = models.GetAllSettings(ctx, db)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func getResourceHandler(db *gorm.DB) gin.HandlerFunc {
	export := exportVouchersHandler(db)
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if c.Param("collection") == "export" && c.Param("id") == "vouchers" {
			export(c)
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var out interface{}
		switch c.Param("collection") {
		case "groups":
			out, err = models.GetGroup(ctx, db, id)
		case "ledgers":
			out, err = models.GetLedger(ctx, db, id)
		case "items":
			out, err = models.GetItem(ctx, db, id)
		case "grns":
			out, err = models.GetGrn(ctx, db, id)
		case "vouchers":
			out, err = models.GetVoucher(ctx, db, id)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func exportVouchersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		vouchers, err := models.GetAllVouchers(ctx, db)
		if err != nil {
			respondError(c, err)
			return
		}
		ledgers, err := models.GetAllLedgers(ctx, db)
		if err != nil {
			respondError(c, err)
			return
		}
		names := make(tally.LedgerNameMap, len(ledgers))
		for _, l := range ledgers {
			names[l.ID] = l.Name
		}
		c.Data(http.StatusOK, "application/xml", []byte(tally.ExportVouchers(vouchers, names)))
	}
}

func suggestLedgerHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		narration := c.Query("narration")
		if narration == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "narration is required"})
			return
		}
		ledger, err := models.SuggestLedger(c.Request.Context(), db, narration)
		if err != nil {
			respondError(c, err)
			return
		}
		if ledger == nil {
			c.JSON(http.StatusOK, gin.H{"suggestion": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestion": ledger})
	}
}

func newRouter(db *gorm.DB, logger *logrus.Logger) *gin.Engine {
	r := gin.New()

	// Correlation IDs: accept the caller's or mint one per request.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, cid))
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api")
	api.POST("/login", loginHandler(db))
	api.POST("/vouchers", postVoucherHandler(db))
	api.POST("/grns", createGrnHandler(db))
	api.POST("/groups", createMasterHandler(db, models.CreateGroup))
	api.POST("/ledgers", createMasterHandler(db, models.CreateLedger))
	api.POST("/items", createMasterHandler(db, models.CreateItem))
	api.POST("/users", createMasterHandler(db, models.CreateUser))
	// /export/vouchers and /ledgers-suggest are served through the wildcard
	// handlers below; see getCollectionHandler.
	api.GET("/:collection", getCollectionHandler(db))
	api.GET("/:collection/:id", getResourceHandler(db))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db := config.ConnectDatabaseWithRetry()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateUp(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping migrations on startup")
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(db, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
