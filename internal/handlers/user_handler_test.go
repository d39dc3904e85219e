package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"usersapi/internal/handlers"
	"usersapi/internal/logger"
	"usersapi/internal/middleware"
	"usersapi/internal/repositories"
	"usersapi/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Status  *bool           `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func newSQLiteRepo(t *testing.T) repositories.UserRepository {
	t.Helper()
	db, err := repositories.OpenGORM("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	repo := repositories.NewGORMUserRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

// setupApp wires the user routes over repo the way the server does.
func setupApp(repo repositories.UserRepository) *fiber.App {
	log := logger.Discard()
	service := services.NewUserService(repo, bcrypt.MinCost, nil, log)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	app.Use(middleware.RequestID())
	handlers.NewUserHandler(service, log).RegisterRoutes(app)
	return app
}

func forEachBackend(t *testing.T, run func(t *testing.T, app *fiber.App)) {
	backends := map[string]func(t *testing.T) repositories.UserRepository{
		"memory": func(t *testing.T) repositories.UserRepository { return repositories.NewMemoryUserRepository() },
		"sqlite": newSQLiteRepo,
	}
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			run(t, setupApp(factory(t)))
		})
	}
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func userPayload(id int, username string) map[string]any {
	return map[string]any{
		"userId":   id,
		"username": username,
		"password": "secret123",
		"fullName": map[string]any{"firstName": "John", "lastName": "Doe"},
		"age":      30,
		"email":    username + "@example.com",
		"hobbies":  []string{"chess", "go"},
		"address":  map[string]any{"street": "1 Main St", "city": "Dhaka", "country": "Bangladesh"},
	}
}

func TestUserOrderLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, app *fiber.App) {
		status, env := doRequest(t, app, http.MethodPost, "/users", userPayload(1, "john"))
		require.Equal(t, http.StatusOK, status, env.Message)
		assert.True(t, env.Success)
		assert.Equal(t, "User created successfully!", env.Message)

		var created map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &created))
		assert.EqualValues(t, 1, created["userId"])
		assert.Equal(t, true, created["isActive"])
		assert.NotContains(t, created, "password")
		assert.NotContains(t, created, "orders")

		status, env = doRequest(t, app, http.MethodPut, "/users/1/orders",
			map[string]any{"productName": "Book", "price": 20, "quantity": 2})
		require.Equal(t, http.StatusOK, status, env.Message)
		assert.Equal(t, "Order created successfully!", env.Message)
		assert.Equal(t, "null", string(env.Data))

		status, env = doRequest(t, app, http.MethodGet, "/users/1/orders", nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"orders":[{"productName":"Book","price":20,"quantity":2}]}`, string(env.Data))

		status, env = doRequest(t, app, http.MethodGet, "/users/1/orders/total-price", nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"totalPrice":20}`, string(env.Data))

		status, env = doRequest(t, app, http.MethodDelete, "/users/1", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "User deleted successfully!", env.Message)
		assert.Equal(t, "null", string(env.Data))

		status, env = doRequest(t, app, http.MethodGet, "/users/1", nil)
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, env.Status)
		assert.False(t, *env.Status)
		assert.Equal(t, "User not found", env.Message)
		require.NotNil(t, env.Error)
		assert.Equal(t, http.StatusNotFound, env.Error.Code)
		assert.Equal(t, "User not found!", env.Error.Description)
	})
}

func TestCreateUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, app *fiber.App) {
		status, _ := doRequest(t, app, http.MethodPost, "/users",
			map[string]any{"user": userPayload(1, "john")})
		require.Equal(t, http.StatusOK, status)

		t.Run("DuplicateUserID", func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPost, "/users", userPayload(1, "other"))
			assert.Equal(t, http.StatusConflict, status)
			assert.Equal(t, "User already exists", env.Message)
		})

		t.Run("DuplicateUsername", func(t *testing.T) {
			status, _ := doRequest(t, app, http.MethodPost, "/users", userPayload(2, "john"))
			assert.Equal(t, http.StatusConflict, status)
		})

		t.Run("LowercaseFirstName", func(t *testing.T) {
			payload := userPayload(3, "jane")
			payload["fullName"] = map[string]any{"firstName": "jane", "lastName": "Doe"}
			status, env := doRequest(t, app, http.MethodPost, "/users", payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "First Name must start with a capital letter", env.Message)
			require.NotNil(t, env.Error)
			assert.Equal(t, http.StatusBadRequest, env.Error.Code)
		})

		t.Run("ShortPassword", func(t *testing.T) {
			payload := userPayload(3, "jane")
			payload["password"] = "short"
			status, env := doRequest(t, app, http.MethodPost, "/users", payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Password must be at least 8 characters", env.Message)
		})

		t.Run("PasswordOverBcryptLimit", func(t *testing.T) {
			payload := userPayload(3, "jane")
			payload["password"] = strings.Repeat("😀", 20)
			status, env := doRequest(t, app, http.MethodPost, "/users", payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Password is too long", env.Message)
		})

		t.Run("BlankAddress", func(t *testing.T) {
			payload := userPayload(3, "jane")
			payload["address"] = map[string]any{"street": "   ", "city": "", "country": ""}
			status, env := doRequest(t, app, http.MethodPost, "/users", payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Street name is required", env.Message)
			require.NotNil(t, env.Error)
			assert.Equal(t, "Street name is required; City name is required; Country name is required", env.Error.Description)
		})

		t.Run("MalformedJSON", func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPost, "/users", `{"userId":`)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Malformed JSON body", env.Message)
		})

		t.Run("EmptyBody", func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPost, "/users", nil)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Request body is required", env.Message)
		})

		status, env := doRequest(t, app, http.MethodGet, "/users", nil)
		require.Equal(t, http.StatusOK, status)
		var users []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &users))
		require.Len(t, users, 1)
		assert.Equal(t, "john", users[0]["username"])
		assert.NotContains(t, users[0], "password")
	})
}

func TestGetUsersEmpty(t *testing.T) {
	app := setupApp(repositories.NewMemoryUserRepository())
	status, env := doRequest(t, app, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Users fetched successfully!", env.Message)
	assert.Equal(t, "[]", string(env.Data))
}

func TestUpdateUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, app *fiber.App) {
		status, _ := doRequest(t, app, http.MethodPost, "/users", userPayload(1, "john"))
		require.Equal(t, http.StatusOK, status)
		status, _ = doRequest(t, app, http.MethodPost, "/users", userPayload(2, "jane"))
		require.Equal(t, http.StatusOK, status)
		status, _ = doRequest(t, app, http.MethodPost, "/users/1/orders",
			map[string]any{"product": map[string]any{"productName": "Pen", "price": 1.5, "quantity": 3}})
		require.Equal(t, http.StatusOK, status)

		t.Run("Success", func(t *testing.T) {
			payload := userPayload(1, "johnny")
			payload["age"] = 31
			payload["isActive"] = false
			status, env := doRequest(t, app, http.MethodPut, "/users/1", payload)
			require.Equal(t, http.StatusOK, status, env.Message)
			assert.Equal(t, "User updated successfully!", env.Message)

			var updated map[string]any
			require.NoError(t, json.Unmarshal(env.Data, &updated))
			assert.Equal(t, "johnny", updated["username"])
			assert.EqualValues(t, 31, updated["age"])
			assert.Equal(t, false, updated["isActive"])
			assert.NotContains(t, updated, "password")

			// orders survive a replace without orders
			status, env = doRequest(t, app, http.MethodGet, "/users/1/orders/total-price", nil)
			require.Equal(t, http.StatusOK, status)
			assert.JSONEq(t, `{"totalPrice":1.5}`, string(env.Data))
		})

		t.Run("IdentityMismatch", func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPut, "/users/1", userPayload(5, "johnny"))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "userId mismatch", env.Message)
		})

		t.Run("UsernameTaken", func(t *testing.T) {
			status, _ := doRequest(t, app, http.MethodPut, "/users/1", userPayload(1, "jane"))
			assert.Equal(t, http.StatusConflict, status)
		})

		t.Run("NotFound", func(t *testing.T) {
			status, _ := doRequest(t, app, http.MethodPut, "/users/9", userPayload(9, "nobody"))
			assert.Equal(t, http.StatusNotFound, status)
		})
	})
}

func TestOrdersForMissingUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, app *fiber.App) {
		order := map[string]any{"productName": "Book", "price": 20, "quantity": 1}
		for _, tc := range []struct {
			method string
			path   string
			body   any
		}{
			{http.MethodPost, "/users/42/orders", order},
			{http.MethodGet, "/users/42/orders", nil},
			{http.MethodGet, "/users/42/orders/total-price", nil},
			{http.MethodDelete, "/users/42", nil},
		} {
			status, env := doRequest(t, app, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusNotFound, status, "%s %s", tc.method, tc.path)
			assert.Equal(t, "User not found", env.Message)
		}
	})
}

func TestAppendOrderValidation(t *testing.T) {
	app := setupApp(repositories.NewMemoryUserRepository())
	status, _ := doRequest(t, app, http.MethodPost, "/users", userPayload(1, "john"))
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"ZeroPrice", map[string]any{"productName": "Book", "price": 0, "quantity": 1}, "Price should be greater than 0"},
		{"ZeroQuantity", map[string]any{"productName": "Book", "price": 5, "quantity": 0}, "Quantity should be at least 1"},
		{"MissingName", map[string]any{"price": 5, "quantity": 1}, "Product name is required"},
		{"StringPrice", map[string]any{"productName": "Book", "price": "5", "quantity": 1}, "price must be a number"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPost, "/users/1/orders", tc.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tc.message, env.Message)
		})
	}
}

func TestInvalidUserID(t *testing.T) {
	app := setupApp(repositories.NewMemoryUserRepository())
	for _, path := range []string{"/users/abc", "/users/0", "/users/-3/orders"} {
		status, env := doRequest(t, app, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "userId must be a positive integer", env.Message)
	}
}

func TestUserExists(t *testing.T) {
	app := setupApp(repositories.NewMemoryUserRepository())
	status, _ := doRequest(t, app, http.MethodPost, "/users", userPayload(1, "john"))
	require.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, app, http.MethodHead, "/users/1", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doRequest(t, app, http.MethodHead, "/users/2", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUnknownRoute(t *testing.T) {
	app := setupApp(repositories.NewMemoryUserRepository())
	status, env := doRequest(t, app, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Status)
	assert.False(t, *env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, http.StatusNotFound, env.Error.Code)
}
