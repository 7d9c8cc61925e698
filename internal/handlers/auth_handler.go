package handlers

import (
	"errors"
	"fmt"

	"dashgate/internal/repositories"
	"dashgate/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// AuthHandler handles HTTP requests for signup and login.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	logger      log.FieldLogger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, logger log.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
		logger:      logger,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// CredentialsRequest is the request body for both signup and login.
// Usernames may not contain ':' since Basic auth splits on the first one.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,max=100,excludes=:"`
	Password string `json:"password" validate:"required"`
}

// parseCredentials binds and validates the request body. On failure it has
// already written the response and returns ok=false.
func (h *AuthHandler) parseCredentials(c *fiber.Ctx) (req CredentialsRequest, ok bool, err error) {
	if err := c.BodyParser(&req); err != nil {
		h.logger.WithError(err).Debug("invalid credentials body")
		return req, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		errorMessages := make(map[string]string)
		if errors.As(err, &validationErrors) {
			for _, e := range validationErrors {
				errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
			}
		}
		return req, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return req, true, nil
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	req, ok, err := h.parseCredentials(c)
	if !ok {
		return err
	}

	created, err := h.authService.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.serviceFailure(c, "registration", err)
	}
	if !created {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "username already exists",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "User registered successfully",
		"username": req.Username,
	})
}

// HandleLogin checks credentials and returns the resulting session.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	req, ok, err := h.parseCredentials(c)
	if !ok {
		return err
	}

	session, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.serviceFailure(c, "login", err)
	}
	if !session.Authenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "invalid username or password",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"session": session,
	})
}

func (h *AuthHandler) serviceFailure(c *fiber.Ctx, operation string, err error) error {
	if errors.Is(err, repositories.ErrUsernameTooLong) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	h.logger.WithField("operation", operation).WithError(err).Error("auth service failure")
	if errors.Is(err, repositories.ErrStorageUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Credential store is unavailable",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": fmt.Sprintf("Could not complete %s", operation),
	})
}
