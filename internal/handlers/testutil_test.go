package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/internal/database"
	"github.com/filedepot/backend/internal/middleware"
	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/internal/storage"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	testMaxFileBytes = 1024
	testMaxUserBytes = 4096
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	users *services.UserService
	tree  *services.TreeService
}

var (
	testSetupOnce  sync.Once
	testSigningKey *rsa.PrivateKey
	testVerifier   *utils.TokenVerifier
)

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()

		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testSigningKey = key

		encoded, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: encoded})

		testVerifier, err = utils.NewTokenVerifier(publicPEM, "RS512")
		if err != nil {
			panic(err)
		}
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	blobs := storage.NewDatabaseStore(db)
	accessService := services.NewAccessService(db)
	quotaService := services.NewQuotaService(db, config.QuotaConfig{
		MaxFileBytes: testMaxFileBytes,
		MaxUserBytes: testMaxUserBytes,
	})
	treeService := services.NewTreeService(db, accessService, quotaService, blobs)
	userService := services.NewUserService(db, accessService, blobs)
	shareService := services.NewShareService(db, accessService)
	contactService := services.NewContactService(db)

	usersHandler := NewUsersHandler(userService)
	filesHandler := NewFilesHandler(treeService)
	directoriesHandler := NewDirectoriesHandler(treeService)
	sharesHandler := NewSharesHandler(shareService)
	contactsHandler := NewContactsHandler(contactService)

	authMiddleware := middleware.NewAuthMiddleware(testVerifier, userService)

	app := fiber.New(fiber.Config{
		BodyLimit:    testMaxFileBytes * 4,
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

	app.All("/*", func(c *fiber.Ctx) error {
		return utils.Fail(c, apperr.BadRequest("Unsupported method or path"))
	})

	return &testEnv{app: app, db: db, users: userService, tree: treeService}
}

// signAccessToken mints a currently-valid access token the way the
// authentication authority would.
func signAccessToken(t *testing.T, userID int64, userName string) string {
	t.Helper()
	now := time.Now().Unix()
	return signToken(t, jwt.MapClaims{
		"user_id":    userID,
		"user_name":  userName,
		"iat":        now - 60,
		"exp":        now + 3600,
		"token_type": "access",
	})
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS512, claims)
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed signing test token: %v", err)
	}
	return signed
}

// provisionUser creates the user record and root directory, returning the
// token and root directory id.
func provisionUser(t *testing.T, env *testEnv, userID int64, userName string) (string, int64) {
	t.Helper()

	if _, err := env.users.Provision(context.Background(), userID, userName); err != nil {
		t.Fatalf("failed provisioning user %d: %v", userID, err)
	}

	var root models.Directory
	if err := env.db.Where("owner_id = ? AND parent_id IS NULL", userID).First(&root).Error; err != nil {
		t.Fatalf("failed loading root directory for user %d: %v", userID, err)
	}

	return signAccessToken(t, userID, userName), root.ID
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}
	return raw
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelope(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if got, _ := body["status"].(string); got != expected {
		t.Fatalf("expected envelope status %q, got %+v", expected, body)
	}
}

// jsonInt64 reads an integer field out of a decoded JSON object.
func jsonInt64(t *testing.T, payload map[string]any, field string) int64 {
	t.Helper()
	value, ok := payload[field].(float64)
	if !ok {
		t.Fatalf("expected numeric field %q in %+v", field, payload)
	}
	return int64(value)
}
