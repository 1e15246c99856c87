package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/confirm"
	"github.com/chachabrian/swiftride-backend/internal/database"
	"github.com/chachabrian/swiftride-backend/internal/dispatch"
	"github.com/chachabrian/swiftride-backend/internal/handlers"
	"github.com/chachabrian/swiftride-backend/internal/matching"
	"github.com/chachabrian/swiftride-backend/internal/middleware"
	"github.com/chachabrian/swiftride-backend/internal/pricing"
	"github.com/chachabrian/swiftride-backend/internal/reaper"
	ridesvc "github.com/chachabrian/swiftride-backend/internal/rides"
	"github.com/chachabrian/swiftride-backend/internal/services"
	"github.com/chachabrian/swiftride-backend/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	store := storage.New(db)

	// Initialize WebSocket hub; a dropped driver connection clears any
	// stale in-trip flag and returns the driver to the dispatchable pool,
	// same as trip completion.
	hub := services.NewHub()
	hub.OnDisconnect = func(userID uint, userType string) {
		if userType == "driver" {
			if err := store.ReleaseDriver(context.Background(), userID); err != nil {
				log.Printf("Failed to release disconnected driver %d: %v", userID, err)
			}
		}
	}
	go hub.Run()

	matcher := matching.NewMatcher(store)
	oracle := pricing.NewStandardOracle(os.Getenv("CURRENCY"))
	cache := confirm.NewCache(confirm.NewRedisKV(services.RedisClient))
	broadcaster := dispatch.NewBroadcaster(hub, dispatch.NewRedisCandidateLog(services.RedisClient), store)

	rideService := ridesvc.NewService(store, cache, matcher, broadcaster, hub, ridesvc.LogSettler{}, ridesvc.DefaultConfig())
	orphanReaper := reaper.New(store, &reaperNotifier{hub: hub, broadcaster: broadcaster})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orphanReaper.Start(ctx)
	go cache.StartSweeper(ctx)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))
	r.Use(middleware.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "connections": hub.GetConnectedClients()})
	})

	// Routes
	api := r.Group("/api")
	{
		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			rides := protected.Group("/rides")
			{
				rides.GET("/types", handlers.ListRideTypes(store))
				rides.POST("/quote", handlers.RequestQuote(store, matcher, oracle, cache))
				rides.POST("", handlers.CreateRide(rideService))
				rides.GET("/mine", handlers.GetMyRides(rideService))
				rides.GET("/sync", handlers.SyncRideState(rideService, orphanReaper))
				rides.GET("/:rideId", handlers.GetRideByID(rideService))
				rides.POST("/:rideId/cancel", handlers.CancelRide(rideService))
			}

			driver := protected.Group("/driver")
			{
				driver.POST("/location", handlers.UpdateDriverLocation(store))
				driver.POST("/availability", handlers.SetDriverAvailability(store))
				driver.POST("/rides/:rideId/accept", handlers.AcceptRide(rideService))
				driver.POST("/rides/:rideId/arrived", handlers.ArriveAtPickup(rideService))
				driver.POST("/rides/:rideId/start", handlers.StartRide(rideService))
				driver.POST("/rides/:rideId/complete", handlers.CompleteRide(rideService))
			}

			maintenance := protected.Group("/maintenance")
			{
				maintenance.POST("/cleanup", handlers.TriggerCleanup(orphanReaper))
				maintenance.POST("/force-reset/:userId", handlers.ForceResetUser(orphanReaper))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// reaperNotifier joins the hub's direct events and the broadcaster's
// offer retraction into the reaper's notification surface.
type reaperNotifier struct {
	hub         *services.Hub
	broadcaster *dispatch.Broadcaster
}

func (n *reaperNotifier) SendEvent(userID uint, event string, data map[string]interface{}) {
	n.hub.SendEvent(userID, event, data)
}

func (n *reaperNotifier) BroadcastExpired(ctx context.Context, rideID uint, candidateIDs []uint) {
	n.broadcaster.BroadcastExpired(ctx, rideID, candidateIDs)
}
