package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/internal/database"
	"github.com/filedepot/backend/internal/handlers"
	"github.com/filedepot/backend/internal/messaging"
	"github.com/filedepot/backend/internal/middleware"
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/internal/storage"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	publicKey, err := os.ReadFile(cfg.JWT.PublicKeyPath)
	if err != nil {
		log.Fatalf("reading token public key failed: %v", err)
	}
	verifier, err := utils.NewTokenVerifier(publicKey, cfg.JWT.Algorithm)
	if err != nil {
		log.Fatalf("token verifier initialization failed: %v", err)
	}

	var blobs storage.BlobStore
	switch cfg.Storage.Backend {
	case "minio":
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			log.Fatalf("minio initialization failed: %v", err)
		}
		if err := minioStore.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed ensuring minio bucket: %v", err)
		}
		blobs = minioStore
	default:
		blobs = storage.NewDatabaseStore(db)
	}

	accessService := services.NewAccessService(db)
	quotaService := services.NewQuotaService(db, cfg.Quota)
	treeService := services.NewTreeService(db, accessService, quotaService, blobs)
	userService := services.NewUserService(db, accessService, blobs)
	shareService := services.NewShareService(db, accessService)
	contactService := services.NewContactService(db)

	usersHandler := handlers.NewUsersHandler(userService)
	filesHandler := handlers.NewFilesHandler(treeService)
	directoriesHandler := handlers.NewDirectoriesHandler(treeService)
	sharesHandler := handlers.NewSharesHandler(shareService)
	contactsHandler := handlers.NewContactsHandler(contactService)

	authMiddleware := middleware.NewAuthMiddleware(verifier, userService)

	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.Quota.MaxFileBytes) + 1024,
		ErrorHandler: utils.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	api.Get("/userinfo/:userID", authMiddleware.RequireUserParam, usersHandler.Info)

	fileRoutes := api.Group("/file", authMiddleware.RequireUserQuery)
	fileRoutes.Post("/", filesHandler.Create)
	fileRoutes.Get("/:fileID", filesHandler.Get)
	fileRoutes.Put("/:fileID", filesHandler.Update)
	fileRoutes.Delete("/:fileID", filesHandler.Delete)

	directoryRoutes := api.Group("/directory", authMiddleware.RequireUserQuery)
	directoryRoutes.Post("/", directoriesHandler.Create)
	directoryRoutes.Get("/:directoryID", directoriesHandler.Get)
	directoryRoutes.Put("/:directoryID", directoriesHandler.Update)
	directoryRoutes.Delete("/:directoryID", directoriesHandler.Delete)

	shareRoutes := api.Group("/share", authMiddleware.RequireUserQuery)
	shareRoutes.Post("/", sharesHandler.Create)
	shareRoutes.Get("/:shareID", sharesHandler.Get)
	shareRoutes.Delete("/:shareID", sharesHandler.Delete)

	contactRoutes := api.Group("/contact", authMiddleware.RequireUserQuery)
	contactRoutes.Get("/:contactID", contactsHandler.Get)
	contactRoutes.Post("/:contactID", contactsHandler.Add)
	contactRoutes.Delete("/:contactID", contactsHandler.Remove)

	// Any verb or path not wired above is a malformed request, not a 404:
	// clients speak a fixed surface and anything else is a client bug.
	app.All("/*", func(c *fiber.Ctx) error {
		return utils.Fail(c, apperr.BadRequest("Unsupported method or path"))
	})

	var consumer *messaging.Consumer
	if cfg.Queue.Host != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		consumer = messaging.NewConsumer(cfg.Queue, userService)
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("queue consumer failed to start: %v", err)
		}
	}

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutdown", nil)
	if consumer != nil {
		consumer.Close()
	}
	if err := app.Shutdown(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
