package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/skillloop/backend/docs"
	"github.com/skillloop/backend/internal/database"
	mW "github.com/skillloop/backend/internal/middleware"
	"github.com/skillloop/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title SkillLoop Backend API
// @version 1.0
// @description API for the SkillLoop peer skill exchange platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("credits.rate_15", "CREDITS_RATE_15")
	viper.BindEnv("credits.rate_30", "CREDITS_RATE_30")
	viper.BindEnv("credits.rate_60", "CREDITS_RATE_60")
	viper.BindEnv("app.frontend_url", "APP_FRONTEND_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "SkillLoop Backend API"
	docs.SwaggerInfo.Description = "API for the SkillLoop peer skill exchange platform"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	ratingService := services.NewRatingService(db)
	sessionService := services.NewSessionService(db, ledgerService, ratingService, services.DefaultCreditRates())
	matchService := services.NewMatchService(db, redisClient)
	skillService := services.NewSkillService(db, matchService)
	authService := services.NewAuthService(db, redisClient, ledgerService)
	userService := services.NewUserService(db)
	messageService := services.NewMessageService(db)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/credits/rates", sessionService.GetCreditRates)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			// Profile endpoints
			r.Get("/users/me", authService.GetUserAccount)
			r.Put("/users/me", userService.UpdateProfile)
			r.Get("/users/me/qr", userService.GetProfileQR)
			r.Get("/users/{userId}", userService.GetProfile)

			// Skill endpoints
			r.Get("/skills", skillService.GetSkills)
			r.Post("/skills", skillService.CreateSkill)
			r.Delete("/skills/{skillId}", skillService.DeleteSkill)
			r.Get("/skills/categories", skillService.GetCategories)
			r.Get("/skills/user/{userId}", skillService.GetUserSkills)

			// Match endpoints
			r.Get("/matches/find", matchService.FindMatches)
			r.Post("/matches", matchService.CreateMatch)
			r.Get("/matches", matchService.GetMatches)
			r.Get("/matches/sent", matchService.GetSentRequests)
			r.Get("/matches/received", matchService.GetReceivedRequests)
			r.Get("/matches/connections", matchService.GetConnections)
			r.Put("/matches/{matchId}/accept", matchService.AcceptMatch)
			r.Put("/matches/{matchId}/reject", matchService.RejectMatch)
			r.Delete("/matches/{matchId}", matchService.CancelMatch)

			// Session endpoints
			r.Get("/sessions", sessionService.GetSessions)
			r.Post("/sessions", sessionService.CreateSession)
			r.Get("/sessions/pending", sessionService.GetPendingRequests)
			r.Get("/sessions/sent", sessionService.GetSentRequests)
			r.Get("/sessions/scheduled", sessionService.GetScheduledSessions)
			r.Get("/sessions/history", sessionService.GetSessionHistory)
			r.Put("/sessions/{sessionId}", sessionService.UpdateSession)
			r.Delete("/sessions/{sessionId}", sessionService.DeleteSession)
			r.Put("/sessions/{sessionId}/accept", sessionService.AcceptSession)
			r.Put("/sessions/{sessionId}/reject", sessionService.RejectSession)
			r.Put("/sessions/{sessionId}/cancel", sessionService.CancelSession)
			r.Put("/sessions/{sessionId}/complete", sessionService.CompleteSession)
			r.Post("/sessions/{sessionId}/rate", sessionService.RateSession)

			// Credit endpoints
			r.Get("/credits/balance", ledgerService.GetBalance)
			r.Get("/credits/history", ledgerService.GetHistory)
			r.Get("/credits/transactions/{transactionId}", ledgerService.GetTransaction)
			r.Post("/credits/earn", ledgerService.EarnCredits)
			r.Post("/credits/spend", ledgerService.SpendCredits)

			// Messaging endpoints
			r.Get("/messages/conversations", messageService.GetConversations)
			r.Post("/messages/conversations", messageService.StartConversation)
			r.Get("/messages/conversations/{conversationId}", messageService.GetMessages)
			r.Post("/messages/conversations/{conversationId}/messages", messageService.SendMessage)
			r.Put("/messages/conversations/{conversationId}/read", messageService.MarkRead)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
