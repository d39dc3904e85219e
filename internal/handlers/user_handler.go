package handlers

import (
	"log/slog"
	"strconv"

	"usersapi/internal/models"
	"usersapi/internal/services"
	"usersapi/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for users and their orders.
type UserHandler struct {
	service  *services.UserService
	validate *validation.Validator
	log      *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validation.New(),
		log:      log,
	}
}

// RegisterRoutes registers the user routes with the Fiber router.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Get("/", h.HandleGetUsers)
	// fiber's Get also answers HEAD, so the explicit probe goes first
	userRoutes.Head("/:userId", h.HandleUserExists)
	userRoutes.Get("/:userId", h.HandleGetUser)
	userRoutes.Put("/:userId", h.HandleUpdateUser)
	userRoutes.Delete("/:userId", h.HandleDeleteUser)
	userRoutes.Post("/:userId/orders", h.HandleAppendOrder)
	userRoutes.Put("/:userId/orders", h.HandleAppendOrder)
	userRoutes.Get("/:userId/orders", h.HandleGetOrders)
	userRoutes.Get("/:userId/orders/total-price", h.HandleGetTotalPrice)
}

// HandleCreateUser creates a new user.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	user, err := h.parseUser(c)
	if err != nil {
		return failWith(c, h.log, err, "Error while creating user")
	}

	created, err := h.service.CreateUser(c.UserContext(), user)
	if err != nil {
		return failWith(c, h.log, err, "Error while creating user")
	}
	h.log.Info("user created", "user_id", created.UserID)
	return ok(c, "User created successfully!", created)
}

// HandleGetUsers lists all users.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return failWith(c, h.log, err, "Error while fetching users")
	}
	if users == nil {
		users = []models.User{}
	}
	return ok(c, "Users fetched successfully!", users)
}

// HandleUserExists answers HEAD with 200 or 404 and no body.
func (h *UserHandler) HandleUserExists(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	exists, err := h.service.UserExists(c.UserContext(), userID)
	if err != nil {
		h.log.Error("existence check failed", "user_id", userID, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !exists {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendStatus(fiber.StatusOK)
}

// HandleGetUser retrieves a single user.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failWith(c, h.log, err, "Error while fetching user")
	}
	user, err := h.service.GetUser(c.UserContext(), userID)
	if err != nil {
		return failWith(c, h.log, err, "Error while fetching user")
	}
	return ok(c, "User fetched successfully!", user)
}

// HandleUpdateUser replaces a user.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failWith(c, h.log, err, "Could not update user!")
	}
	user, err := h.parseUser(c)
	if err != nil {
		return failWith(c, h.log, err, "Could not update user!")
	}

	updated, err := h.service.UpdateUser(c.UserContext(), userID, user)
	if err != nil {
		return failWith(c, h.log, err, "Could not update user!")
	}
	h.log.Info("user updated", "user_id", userID)
	return ok(c, "User updated successfully!", updated)
}

// HandleDeleteUser deletes a user and its orders.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failWith(c, h.log, err, "Could not delete user!")
	}
	if err := h.service.DeleteUser(c.UserContext(), userID); err != nil {
		return failWith(c, h.log, err, "Could not delete user!")
	}
	h.log.Info("user deleted", "user_id", userID)
	return ok(c, "User deleted successfully!", nil)
}

// HandleAppendOrder adds an order to a user.
func (h *UserHandler) HandleAppendOrder(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failWith(c, h.log, err, "Could not create order!")
	}
	req, err := validation.DecodeOrder(c.Body())
	if err != nil {
		return failWith(c, h.log, err, "Could not create order!")
	}
	order, err := h.validate.Order(req)
	if err != nil {
		return failWith(c, h.log, err, "Could not create order!")
	}

	if err := h.service.AppendOrder(c.UserContext(), userID, *order); err != nil {
		return failWith(c, h.log, err, "Could not create order!")
	}
	return ok(c, "Order created successfully!", nil)
}

// HandleGetOrders lists a user's orders.
func (h *UserHandler) HandleGetOrders(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failWith(c, h.log, err, "Could not fetch orders!")
	}
	orders, err := h.service.ListOrders(c.UserContext(), userID)
	if err != nil {
		return failWith(c, h.log, err, "Could not fetch orders!")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return ok(c, "Order fetched successfully!", models.OrdersResponse{Orders: orders})
}

// HandleGetTotalPrice returns the total price of a user's orders.
func (h *UserHandler) HandleGetTotalPrice(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failWith(c, h.log, err, "Could not calculate total price!")
	}
	total, err := h.service.TotalPrice(c.UserContext(), userID)
	if err != nil {
		return failWith(c, h.log, err, "Could not calculate total price!")
	}
	return ok(c, "Total price calculated successfully!", models.TotalPriceResponse{TotalPrice: total})
}

func (h *UserHandler) parseUser(c *fiber.Ctx) (*models.User, error) {
	req, err := validation.DecodeUser(c.Body())
	if err != nil {
		return nil, err
	}
	return h.validate.User(req)
}

func parseUserID(c *fiber.Ctx) (int, error) {
	userID, err := strconv.Atoi(c.Params("userId"))
	if err != nil || userID <= 0 {
		return 0, &validation.Error{Violations: []validation.Violation{{
			Field:   "userId",
			Message: "userId must be a positive integer",
		}}}
	}
	return userID, nil
}
