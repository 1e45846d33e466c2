package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"classboard/internal/audit"
	"classboard/internal/auth"
	"classboard/internal/campus"
	"classboard/internal/clock"
	"classboard/internal/cloudinary"
	"classboard/internal/config"
	"classboard/internal/faceclient"
	"classboard/internal/gate"
	"classboard/internal/httpmiddleware"
	"classboard/internal/logger"
	"classboard/internal/marking"
	"classboard/internal/metrics"
	"classboard/internal/queue"
	"classboard/internal/reconcile"
	"classboard/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Env)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	log := logger.Log

	table, err := gate.ParseTable(cfg.ClassPeriods)
	if err != nil {
		return fmt.Errorf("invalid CLASS_PERIODS: %w", err)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Warnf("db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classboard:marks")
	}

	var repo *audit.Repository
	if db != nil && db.Client != nil {
		repo = audit.NewRepository(db.Client)
	}

	campusClient := campus.New(cfg.CampusAPIURL, cfg.CampusSkip)
	records := campus.NewAttendanceCache(campusClient, redisClient.Client, cfg.AttendanceCacheTTL)
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	now := clock.System()
	tx := marking.New(face, records, table, now, log)

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Infof("Cloudinary configured: %s", cfg.CloudinaryCloudName)
	} else {
		log.Info("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	// Coarse clock tick: keeps the verification-window gauge current and
	// logs open/close transitions.
	cronEngine := cron.New()
	var windowWasOpen bool
	if _, err := cronEngine.AddFunc(cfg.RefreshSpec, func() {
		w := gate.Evaluate(now(), table)
		if w.Allowed {
			metrics.WindowOpen.Set(1)
		} else {
			metrics.WindowOpen.Set(0)
		}
		if w.Allowed != windowWasOpen {
			log.Infof("verification window changed: allowed=%v (%s)", w.Allowed, w.Reason)
			windowWasOpen = w.Allowed
		}
	}); err != nil {
		return fmt.Errorf("invalid REFRESH_SPEC: %w", err)
	}
	cronEngine.Start()
	defer cronEngine.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/students/register", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if repo != nil {
			if err := repo.UpsertStudent(c.Request.Context(), req.StudentID); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		tokens, err := auth.Issue(req.StudentID, "student", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		if repo != nil {
			_ = repo.SaveRefreshToken(c.Request.Context(), req.StudentID, tokens.RefreshToken, tokens.RefreshExp)
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StudentAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Today's class schedule with reconciled statuses. This is the view the
	// dashboard polls; it is recomputed from fresh inputs on every call.
	authGroup.GET("/schedule/status", func(c *gin.Context) {
		studentID := auth.StudentID(c)
		at := now()

		periods, err := campusClient.TodaySchedule(c.Request.Context())
		if err != nil {
			log.Warnf("schedule fetch failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "schedule fetch failed"})
			return
		}

		date := at.Format("2006-01-02")
		recs, err := records.AttendanceForDate(c.Request.Context(), studentID, date)
		if err != nil {
			// Reconcile on whatever snapshot we have; the engine tolerates
			// an empty record set.
			log.Warnf("attendance fetch failed for %s: %v", studentID, err)
			recs = nil
		}

		views := reconcile.Reconcile(periods, recs, at)
		metrics.ReconcilePasses.Inc()

		c.JSON(http.StatusOK, gin.H{"date": date, "subjects": views})
	})

	authGroup.GET("/verification/window", func(c *gin.Context) {
		at := now()
		w := gate.Evaluate(at, table)
		resp := gin.H{"allowed": w.Allowed, "reason": w.Reason}
		if w.Current != nil {
			resp["current_period"] = w.Current.Name
			resp["period_ends_in_minutes"] = w.Current.End - clock.MinuteOf(at)
		}
		if w.UntilNext != nil {
			resp["next_window_in_seconds"] = int(w.UntilNext.Seconds())
		}
		c.JSON(http.StatusOK, resp)
	})

	// Capture upload — accepts a base64 data URL or a multipart file and
	// returns the public URL the marking call uses as its image payload.
	authGroup.POST("/captures", func(c *gin.Context) {
		if cdnClient == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "capture storage not configured"})
			return
		}

		contentType := c.ContentType()
		var result *cloudinary.UploadResult
		var err error

		switch {
		case strings.Contains(contentType, "multipart/form-data"):
			file, header, ferr := c.Request.FormFile("file")
			if ferr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
				return
			}
			defer file.Close()
			data, ferr := io.ReadAll(file)
			if ferr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
				return
			}
			result, err = cdnClient.UploadBytes(data, header.Filename)

		default:
			var body struct {
				Data string `json:"data" binding:"required"`
			}
			if berr := c.ShouldBindJSON(&body); berr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
				return
			}
			result, err = cdnClient.UploadBase64(body.Data)
		}

		if err != nil {
			log.Warnf("cloudinary upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "capture upload failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"url":       result.SecureURL,
			"public_id": result.PublicID,
			"width":     result.Width,
			"height":    result.Height,
			"bytes":     result.Bytes,
		})
	})

	// Marking transaction. subject_id may be omitted for an identity-check-
	// only run.
	authGroup.POST("/attendance/mark", func(c *gin.Context) {
		var req struct {
			SubjectID string `json:"subject_id"`
			ImageURL  string `json:"image_url" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		studentID := auth.StudentID(c)
		res, err := tx.Mark(c.Request.Context(), studentID, req.SubjectID, func(context.Context) (string, error) {
			return req.ImageURL, nil
		})
		if err != nil {
			var denied *marking.PreconditionError
			if errors.As(err, &denied) {
				resp := gin.H{"error": denied.Window.Reason}
				if denied.Window.UntilNext != nil {
					resp["next_window_in_seconds"] = int(denied.Window.UntilNext.Seconds())
				}
				c.JSON(http.StatusForbidden, resp)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		metrics.MarkOutcomes.WithLabelValues(string(res.Outcome)).Inc()
		if res.Outcome == marking.OutcomeMarked {
			metrics.CacheInvalidations.Inc()
		}

		attempt := audit.Attempt{
			StudentID: studentID,
			SubjectID: req.SubjectID,
			Outcome:   string(res.Outcome),
			ImageURL:  req.ImageURL,
			Message:   res.Message,
			When:      now().UTC(),
		}
		if body, merr := json.Marshal(attempt); merr == nil {
			if perr := q.Publish(c.Request.Context(), queue.Message{Type: "mark", Body: body}); perr != nil {
				log.Warnf("queue publish failed: %v", perr)
			}
		}

		status := http.StatusOK
		switch res.Outcome {
		case marking.OutcomeIdentityMismatch:
			status = http.StatusForbidden
		case marking.OutcomeTransportError:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"outcome": res.Outcome, "message": res.Message})
	})

	authGroup.GET("/attendance/attempts", func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attempt history not available"})
			return
		}
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		attempts, err := repo.ListAttempts(c.Request.Context(), auth.StudentID(c), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp := gin.H{"attempts": attempts}
		if subjectID := c.Query("subject_id"); subjectID != "" {
			last, err := repo.LastMarked(c.Request.Context(), auth.StudentID(c), subjectID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			resp["last_marked"] = last
		}
		c.JSON(http.StatusOK, resp)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server forced shutdown: %v", err)
	}

	log.Info("server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
