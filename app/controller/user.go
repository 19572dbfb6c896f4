package controller

import (
	"errors"
	"net/http"
	"strconv"

	dto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/service"

	"github.com/labstack/echo/v4"
)

type UserController struct {
	userService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{userService: userService}
}

// Me returns the caller's own record.
func (c *UserController) Me(ctx echo.Context) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// UpdateUser changes a user's email. Self-or-admin only.
func (c *UserController) UpdateUser(ctx echo.Context) error {
	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid user id"})
	}

	var req dto.UpdateUserRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Email == "" {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "email is required"})
	}

	current := middleware.CurrentUser(ctx)
	if current == nil {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
	}

	user, err := c.userService.UpdateUserRestricted(ctx.Request().Context(), userID, req.Email, current)
	if err != nil {
		return c.mutationError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// DeleteUser deactivates a user; there is no hard delete. Self-or-admin only.
func (c *UserController) DeleteUser(ctx echo.Context) error {
	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid user id"})
	}

	current := middleware.CurrentUser(ctx)
	if current == nil {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
	}

	user, err := c.userService.DeleteUser(ctx.Request().Context(), userID, current)
	if err != nil {
		return c.mutationError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// ListUsers returns every account. Admin only.
func (c *UserController) ListUsers(ctx echo.Context) error {
	users, err := c.userService.GetUsers(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserListResponse(users))
}

// GetUser returns a single account by id. Admin only.
func (c *UserController) GetUser(ctx echo.Context) error {
	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid user id"})
	}

	user, err := c.userService.GetUser(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotRegistered) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not registered"})
		}
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// CreateUser directly creates an active account. Admin only.
func (c *UserController) CreateUser(ctx echo.Context) error {
	var req dto.CreateUserRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "email and password are required"})
	}

	user, err := c.userService.CreateUser(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "email is already taken"})
		}
		if errors.Is(err, service.ErrWeakPassword) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusCreated, dto.NewUserResponse(user))
}

func (c *UserController) mutationError(ctx echo.Context, err error) error {
	if errors.Is(err, service.ErrUserNotRegistered) {
		return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not registered"})
	}
	if errors.Is(err, service.ErrAuthorizationFailed) {
		return ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "authorization failed"})
	}
	return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
}
