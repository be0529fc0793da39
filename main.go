package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"orbit/config"
	"orbit/models"
	"orbit/providers/gemini"
	"orbit/services"
	"orbit/storage"
	"orbit/store"
)

var uploadedPapersCounter prometheus.Counter

func init() {
	uploadedPapersCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_papers_uploaded_total",
			Help: "Total number of papers uploaded into the workspace.",
		},
	)
	prometheus.MustRegister(uploadedPapersCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// requestLogger protokolliert jede Anfrage mit Status und Dauer.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistenz
	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		logging.Fatal("Failed to open snapshot database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	logging.Info("Snapshot database ready", zap.String("driver", cfg.DBDriver))

	st := store.New(storage.NewSnapshotRepository(db, cfg.SnapshotName), logging)
	if err := st.Restore(ctx); err != nil {
		logging.Fatal("Failed to restore workspace", zap.Error(err))
	}

	// Modell-Anbindung
	factory := gemini.NewFactory(gemini.Options{
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: gemini.NewHTTPClient(cfg.ModelTimeout + 10*time.Second),
	}, logging)
	gateway := services.NewGateway(services.GatewayConfig{DefaultAPIKey: cfg.GeminiAPIKey}, factory, logging)
	if !gateway.HasDefaultKey() {
		logging.Warn("GEMINI_API_KEY not set; clients must provide their own key")
	}

	opts := services.WorkspaceOptions{
		ModelTimeout: cfg.ModelTimeout,
		Text:         services.NewPDFTextExtractor(logging),
	}
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3Options{
			URL:    cfg.S3URL,
			Region: cfg.S3Region,
			Key:    cfg.S3Key,
			Secret: cfg.S3Secret,
		})
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		opts.Archive = storage.NewPDFArchive(s3Client, cfg.S3URL, cfg.S3Bucket)
		logging.Info("PDF archive enabled", zap.String("bucket", cfg.S3Bucket))
	}
	workspace := services.NewWorkspaceService(st, gateway, opts, logging)

	router := newRouter(cfg, workspace, logging)

	// Snapshot-Autosave
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.SnapshotSchedule, func() {
		if err := st.Flush(context.Background()); err != nil {
			logging.Error("Scheduled snapshot flush failed", zap.Error(err))
		}
	})
	if err != nil {
		logging.Fatal("Invalid SNAPSHOT_SCHEDULE", zap.String("schedule", cfg.SnapshotSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Stateless-Analysen warten bis zu MODEL_TIMEOUT auf das Modell.
		WriteTimeout: cfg.ModelTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")
	<-cronScheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	if err := st.Flush(shutdownCtx); err != nil {
		logging.Error("Final snapshot flush failed", zap.Error(err))
	}
}

func newRouter(cfg *config.Config, workspace *services.WorkspaceService, logging *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logging))
	corsConfig := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins(),
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-API-KEY"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/")
	api.Use(apiKeyAuthMiddleware(cfg))
	setupResearchRoutes(api, workspace, cfg.MaxUploadBytes(), logging)
	setupWorkspaceRoutes(api, workspace, cfg.MaxUploadBytes(), logging)
	return router
}

// statusFor bildet Eingabefehler auf 400 und alles andere auf 500 ab.
func statusFor(err error) int {
	if errors.Is(err, services.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)
		c.Next()
	}
}

func readUpload(fh *multipart.FileHeader) (services.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return services.UploadFile{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return services.UploadFile{}, err
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = "application/pdf"
	}
	return services.UploadFile{Name: fh.Filename, MimeType: mime, Data: data}, nil
}

func sendMarkdown(c *gin.Context, filename, body string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(body))
}

// setupResearchRoutes registriert die zustandslosen Endpunkte /analyze, /chat, /synthesize und /status.
func setupResearchRoutes(router *gin.RouterGroup, workspace *services.WorkspaceService, maxUpload int64, log *zap.Logger) {
	router.POST("/analyze", limitBody(maxUpload), func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return
		}
		upload, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
			return
		}
		analysis, err := workspace.Analyze(c.Request.Context(), c.PostForm("apiKey"), upload.Data, upload.MimeType)
		if err != nil {
			log.Error("Analysis error", zap.String("file", upload.Name), zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"analysis": analysis})
	})

	router.POST("/chat", func(c *gin.Context) {
		var req struct {
			Message     string               `json:"message"`
			Papers      []models.PaperDigest `json:"papers"`
			ChatHistory []models.ChatTurn    `json:"chatHistory"`
			APIKey      string               `json:"apiKey"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
			return
		}
		text, citations, err := workspace.Answer(c.Request.Context(), req.APIKey, req.Message, req.ChatHistory, req.Papers)
		if err != nil {
			log.Error("Chat error", zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"response": text, "citations": citations})
	})

	router.POST("/synthesize", func(c *gin.Context) {
		var req struct {
			Papers []models.PaperDigest `json:"papers"`
			APIKey string               `json:"apiKey"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if len(req.Papers) < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "At least 2 papers are required for synthesis"})
			return
		}
		result, err := workspace.SynthesizeDigests(c.Request.Context(), req.APIKey, req.Papers)
		if err != nil {
			log.Error("Synthesis error", zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"synthesis": result})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"hasKey": workspace.Gateway.HasDefaultKey()})
	})
}

// setupWorkspaceRoutes registriert die Store-gestützten Endpunkte unter /workspace.
func setupWorkspaceRoutes(router *gin.RouterGroup, workspace *services.WorkspaceService, maxUpload int64, log *zap.Logger) {
	rg := router.Group("/workspace")
	st := workspace.Store

	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Snapshot())
	})

	// Upload: Papers werden sofort angelegt, die Analyse läuft im Hintergrund.
	rg.POST("/papers", limitBody(maxUpload), func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil || len(form.File["file"]) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return
		}
		files := make([]services.UploadFile, 0, len(form.File["file"]))
		for _, fh := range form.File["file"] {
			upload, err := readUpload(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Could not read %s", fh.Filename)})
				return
			}
			files = append(files, upload)
		}
		papers := workspace.Enqueue(files)
		uploadedPapersCounter.Add(float64(len(papers)))

		ids := make([]string, 0, len(papers))
		for _, p := range papers {
			ids = append(ids, p.ID)
		}
		go func() {
			if err := workspace.AnalyzeBatch(context.Background(), ids); err != nil {
				log.Warn("Batch finished with failures", zap.Int("papers", len(ids)), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"papers": papers})
	})

	rg.GET("/papers/:id", func(c *gin.Context) {
		paper, ok := st.Paper(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.DELETE("/papers/:id", func(c *gin.Context) {
		if !st.RemovePaper(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	rg.GET("/papers/:id/export", func(c *gin.Context) {
		paper, ok := st.Paper(c.Param("id"))
		if !ok || paper.Analysis == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no analysis for paper"})
			return
		}
		sendMarkdown(c, services.AnalysisFilename(paper.Analysis.Title), services.AnalysisMarkdown(paper.Analysis))
	})

	rg.PUT("/selection", func(c *gin.Context) {
		var req struct {
			PaperID string `json:"paperId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if !st.SelectPaper(req.PaperID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"selectedPaperId": req.PaperID})
	})

	rg.GET("/graph", func(c *gin.Context) {
		concepts, edges := st.Graph()
		c.JSON(http.StatusOK, gin.H{"concepts": concepts, "edges": edges})
	})

	rg.GET("/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Messages())
	})

	rg.POST("/messages", func(c *gin.Context) {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		reply, err := workspace.Chat(c.Request.Context(), req.Message)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
				return
			}
			// Die Fehlermeldung steht bereits als Assistenten-Nachricht im Verlauf.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "message": reply})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": reply})
	})

	rg.DELETE("/messages", func(c *gin.Context) {
		st.ClearMessages()
		c.Status(http.StatusNoContent)
	})

	rg.GET("/messages/export", func(c *gin.Context) {
		now := time.Now()
		sendMarkdown(c, services.ChatFilename(now), services.ChatMarkdown(st.Messages(), now))
	})

	rg.GET("/synthesis", func(c *gin.Context) {
		syn := st.Synthesis()
		if syn == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no synthesis"})
			return
		}
		c.JSON(http.StatusOK, syn)
	})

	rg.POST("/synthesis", func(c *gin.Context) {
		syn, err := workspace.Synthesize(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"synthesis": syn})
	})

	rg.DELETE("/synthesis", func(c *gin.Context) {
		st.SetSynthesis(nil)
		c.Status(http.StatusNoContent)
	})

	rg.GET("/synthesis/export", func(c *gin.Context) {
		syn := st.Synthesis()
		if syn == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no synthesis"})
			return
		}
		sendMarkdown(c, services.SynthesisFilename(time.Now()), services.SynthesisMarkdown(syn))
	})

	rg.PUT("/credential", func(c *gin.Context) {
		var req struct {
			APIKey string `json:"apiKey"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		workspace.SetCredential(req.APIKey)
		c.JSON(http.StatusOK, gin.H{"apiKeySet": st.Snapshot().APIKeySet})
	})
}
