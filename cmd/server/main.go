package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"google.golang.org/api/option"

	"github.com/lightfolio/server/internal/config"
	"github.com/lightfolio/server/internal/handlers"
	"github.com/lightfolio/server/internal/lightroom"
	custommw "github.com/lightfolio/server/internal/middleware"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
	"github.com/lightfolio/server/internal/services"
)

// firebaseMinter adapts the Firebase Admin client to the handler's
// TokenMinter interface.
type firebaseMinter struct {
	auth *firebaseauth.Client
}

func (m *firebaseMinter) CustomToken(ctx context.Context, uid string) (string, error) {
	return m.auth.CustomTokenWithClaims(ctx, uid, map[string]any{"source": "adobe_api"})
}

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTelemetry, err := observability.Setup(ctx, "lightfolio-server")
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}

	var opts []option.ClientOption
	if cfg.GoogleCloud.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCloud.CredentialsFile))
	}

	// Initialize Google Cloud clients
	fsClient, err := firestore.NewClient(ctx, cfg.GoogleCloud.ProjectID, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore client: %v", err)
	}
	defer fsClient.Close()

	gcsClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage client: %v", err)
	}
	defer gcsClient.Close()

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.GoogleCloud.ProjectID}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase app: %v", err)
	}
	fbAuth, err := fbApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase auth client: %v", err)
	}

	// Initialize repositories
	metadataRepo := repository.NewFirestoreMetadataRepo(fsClient)
	if err := metadataRepo.EnsureDocuments(ctx); err != nil {
		log.Fatalf("Failed to bootstrap metadata documents: %v", err)
	}
	tokenRepo := repository.NewFirestoreTokenRepo(fsClient)

	// Initialize services
	host := lightroom.NewClient(cfg.Adobe.APIBaseURL, cfg.Adobe.ClientID, nil)
	objectStore := services.NewGCSStorageService(gcsClient, cfg.GoogleCloud.StorageBucket)

	cleanup := services.NewCleanupService(objectStore, cfg.Sync.CleanupQueueSize, uint(cfg.Sync.CleanupMaxTries))
	cleanup.Start(ctx)

	oauthConf := services.NewOAuthConfig(cfg.Adobe.IMSBaseURL, cfg.Adobe.ClientID, cfg.Adobe.ClientSecret, cfg.Adobe.RedirectURL)
	sessionService := services.NewSessionService(tokenRepo, oauthConf, cfg.Adobe.IMSBaseURL, nil)
	catalogService := services.NewCatalogService(metadataRepo, host)
	albumSync := services.NewAlbumSyncService(metadataRepo, host, catalogService, cleanup)
	assetSync := services.NewAssetSyncService(metadataRepo, host, catalogService, cleanup)
	renditionService := services.NewRenditionService(metadataRepo, host, catalogService, objectStore, cfg.Sync.MaxRenditionWorkers)
	collectionService := services.NewCollectionService(metadataRepo)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(sessionService, &firebaseMinter{auth: fbAuth}, cfg.Adobe.AdminUserID, cfg.AdminAppURL)
	albumHandler := handlers.NewAlbumHandler(sessionService, albumSync, assetSync, renditionService, collectionService)
	collectionHandler := handlers.NewCollectionHandler(collectionService, renditionService, sessionService)

	metrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Printf("Failed to initialize HTTP metrics: %v", err)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.Middleware(metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Public routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/get-collections", collectionHandler.GetCollections)
	r.Get("/thumbnails/{album}", albumHandler.Thumbnails)
	r.Get("/auth/login", authHandler.Login)
	r.Get("/auth/callback", authHandler.Callback)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(custommw.RequireIdentity(custommw.NewFirebaseVerifier(fbAuth)))

		r.Get("/get-auth", authHandler.GetAuth)
		r.Get("/get-albums/{collection}", albumHandler.GetAlbums)
		r.Put("/album-click/{id}/{collection}", albumHandler.AlbumClick)
		r.Put("/reorder-photos/{album}", albumHandler.ReorderPhotos)
		r.Put("/add-collection/{collection}", collectionHandler.AddCollection)
		r.Put("/del-collection/{collection}", collectionHandler.DelCollection)
		r.Put("/collection-click/{collection}", collectionHandler.CollectionClick)
		r.Put("/reorder-collections", collectionHandler.ReorderCollections)
		r.Put("/thumbnail-click/{collection}/{thumbnail}", collectionHandler.ThumbnailClick)
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // rendition materialization can be slow
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Lightfolio server starting on %s", cfg.ServerAddress)
		log.Printf("Rendition bucket: %s", cfg.GoogleCloud.StorageBucket)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	cleanup.Stop()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Printf("Telemetry shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
