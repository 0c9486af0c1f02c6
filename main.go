package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	alarmapp "alarmboard/internal/alarms/application"
	alarmhttp "alarmboard/internal/alarms/interfaces/http"
	"alarmboard/internal/auth"
	"alarmboard/internal/catalog"
	"alarmboard/internal/collector"
	"alarmboard/internal/observability/metrics"
	"alarmboard/internal/workflow"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := alarmapp.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init(logger)

	manager, err := catalog.NewClient(cfg.ManagerURL, logger)
	if err != nil {
		logger.Fatalf("manager client error: %v", err)
	}
	collectorClient, err := collector.NewClient(cfg.CollectorHost, logger)
	if err != nil {
		logger.Fatalf("collector client error: %v", err)
	}
	tokens := collector.NewTokenCache(collectorClient.Login)
	pipeline, err := collector.NewPipeline(tokens, collectorClient, cfg.CollectorHost, logger)
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}

	commentsClient, err := workflow.NewCommentsClient(cfg.CommentsHost, logger)
	if err != nil {
		logger.Fatalf("comments client error: %v", err)
	}
	engine, err := workflow.NewEngine(commentsClient, logger)
	if err != nil {
		logger.Fatalf("status engine error: %v", err)
	}

	broker := alarmhttp.NewSSEBroker()
	orchestrator, err := alarmapp.NewOrchestrator(manager, pipeline, engine, broker, logger)
	if err != nil {
		logger.Fatalf("orchestrator error: %v", err)
	}
	scheduler := alarmapp.NewScheduler(orchestrator, cfg.RefreshEvery(), logger)
	go scheduler.Start(context.Background())

	boardHandler, err := alarmhttp.NewHandler(orchestrator, scheduler)
	if err != nil {
		logger.Fatalf("board handler error: %v", err)
	}
	sourcesHandler, err := alarmhttp.NewSourcesHandler(manager, collectorClient, scheduler, logger)
	if err != nil {
		logger.Fatalf("sources handler error: %v", err)
	}
	commentsHandler, err := alarmhttp.NewCommentsHandler(commentsClient, engine, orchestrator, logger)
	if err != nil {
		logger.Fatalf("comments handler error: %v", err)
	}
	exportHandler, err := alarmhttp.NewExportHandler(orchestrator, commentsClient, logger)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/cards", boardHandler.HandleCards)
	mux.HandleFunc("/api/v1/errors", boardHandler.HandleErrors)
	mux.HandleFunc("/api/v1/refresh", boardHandler.HandleRefresh)
	mux.Handle("/api/v1/stream", alarmhttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/sources", sourcesHandler)
	mux.Handle("/api/v1/sources/", sourcesHandler)
	mux.Handle("/api/v1/comments", commentsHandler)
	mux.Handle("/api/v1/comments/", commentsHandler)
	mux.HandleFunc("/api/v1/history/export.csv", exportHandler.HandleHistoryCSV)
	mux.HandleFunc("/api/v1/history/export.xlsx", exportHandler.HandleHistoryXLSX)
	mux.HandleFunc("/api/v1/report.pdf", exportHandler.HandleReportPDF)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(handler)
	} else {
		logger.Printf("jwt secret not set, authentication disabled")
	}
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(handler)
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
