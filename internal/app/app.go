package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"robolink/internal/authz"
	"robolink/internal/config"
	"robolink/internal/handlers"
	"robolink/internal/middleware"
	"robolink/internal/pdf"
	"robolink/internal/realtime"
	"robolink/internal/repositories"
	"robolink/internal/roblox"
	"robolink/internal/routes"
	"robolink/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	"github.com/swaggo/gin-swagger"
	_ "robolink/docs"
)

func Run() {
	cfg := config.LoadConfig()

	if cfg.Auth.JWTSecret != "" {
		middleware.JWTKey = []byte(cfg.Auth.JWTSecret)
	}

	// === Хранилище ===
	// Без DSN работаем из памяти: бот жив, но REST-аутентификация недоступна.
	var verifRepo repositories.VerificationRepository
	var userRepo repositories.UserRepository
	if cfg.Database.DSN == "" {
		log.Printf("[app] database.url пуст — привязки держим в памяти, REST-логин выключен")
		verifRepo = repositories.NewMemVerificationRepository()
	} else {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Fatal("Ошибка подключения к БД: ", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Ошибка закрытия БД: %v", err)
			}
		}()
		verifRepo = repositories.NewVerificationRepository(db)
		userRepo = repositories.NewUserRepository(db)
	}

	// === Roblox ===
	rbx := roblox.NewClient(
		cfg.Roblox.UsersURL,
		cfg.Roblox.GroupsURL,
		cfg.Roblox.GroupID,
		time.Duration(cfg.Roblox.TimeoutSeconds)*time.Second,
	)

	// === Services ===
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)

	hub := realtime.NewEventHub()

	// Ранги тянем только когда группа задана
	var roleSync services.RoleSync
	if cfg.Roblox.GroupID != 0 {
		roleSync = services.NewRoleSyncService(verifRepo, rbx, emailService, cfg.Email.AlertTo)
	} else {
		log.Printf("[app] roblox.group_id не задан — синхронизация рангов выключена")
	}

	verifService := services.NewVerificationService(verifRepo, rbx, roleSync, hub, cfg.Verification.CodeLength)

	// PDF генератор (положи DejaVuSans.ttf в assets/fonts/DejaVuSans.ttf)
	pdfGen := pdf.NewReportGenerator(cfg.Files.RootDir, "assets/fonts/DejaVuSans.ttf")
	reportService := services.NewReportService(verifRepo, pdfGen)

	// === Telegram ===
	var integrationsHandler *handlers.IntegrationsHandler
	if cfg.Telegram.BotToken != "" {
		tg, err := services.NewTelegramService(cfg.Telegram.BotToken)
		if err != nil {
			log.Printf("[app] Telegram недоступен, вебхук выключен: %v", err)
		} else {
			if cfg.Telegram.WebhookURL != "" {
				if err := tg.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
					log.Printf("[app] не удалось выставить вебхук: %v", err)
				}
			}
			operators := authz.NewStaticOperators(cfg.Telegram.OperatorIDs)
			integrationsHandler = handlers.NewIntegrationsHandler(tg, verifService, operators)
		}
	} else {
		log.Printf("[app] telegram.bot_token не задан — вебхук выключен")
	}

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userRepo)
	verifyHandler := handlers.NewVerifyHandler(verifService)
	reportHandler := handlers.NewReportHandler(reportService)
	eventsHandler := handlers.NewEventsHandler(hub)

	// === Gin ===
	router := gin.Default()
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Роуты (JWT/RBAC — внутри SetupRoutes)
	routes.SetupRoutes(
		router,
		authHandler,
		verifyHandler,
		reportHandler,
		eventsHandler,
		integrationsHandler,
		hub,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Ошибка запуска сервера: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
