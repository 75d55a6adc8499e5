package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/VALX-GALAXY/SportsInn-sub001/handlers"
	"github.com/VALX-GALAXY/SportsInn-sub001/middleware"
	"github.com/VALX-GALAXY/SportsInn-sub001/models"
	"github.com/VALX-GALAXY/SportsInn-sub001/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// 🔐 GLOBAL: Only Gateway requests allowed when a service token is set
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-User-Name, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Tournament{},
		&models.TournamentApplication{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Listing cache — absence or failure degrades to store-only operation.
	var cache services.ListingCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Printf("⚠️  Redis unreachable at %s (%v) — listing cache disabled", redisAddr, err)
		} else {
			ttl := 60 * time.Second
			if ttlStr := os.Getenv("CACHE_TTL_SECONDS"); ttlStr != "" {
				if n, err := strconv.Atoi(ttlStr); err == nil && n > 0 {
					ttl = time.Duration(n) * time.Second
				}
			}
			cache = services.NewRedisListingCache(client, ttl)
		}
		cancel()
	} else {
		log.Println("⚠️  REDIS_ADDR not set — listing cache disabled")
	}

	// Notifier collaborator — fire-and-forget, optional.
	var notifier services.Notifier
	if notifyURL := os.Getenv("NOTIFY_SERVICE_URL"); notifyURL != "" {
		notifier = services.NewHTTPNotifier(notifyURL, os.Getenv("NOTIFY_SERVICE_TOKEN"))
	} else {
		log.Println("⚠️  NOTIFY_SERVICE_URL not set — notifications disabled")
	}

	hub := services.NewLiveHub()
	allowDecisionChange := strings.EqualFold(os.Getenv("ALLOW_DECISION_CHANGE"), "true")

	tournamentService := services.NewTournamentService(db, cache, notifier, hub, allowDecisionChange)
	tournamentService.StartDeadlineSweeper()

	handlers.SetupTournamentRoutes(app, tournamentService, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Deadline sweeper running (every 1m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)
	if allowDecisionChange {
		log.Println("⚠️  ALLOW_DECISION_CHANGE enabled — decided applications can be re-decided")
	}

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
