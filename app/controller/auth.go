package controller

import (
	"errors"
	"net/http"

	dto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/password"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	registerAck = "A link to activate your account has been emailed to the address provided."
	recoveryAck = "If that email address is in our database, we will send you an email to reset your password."
)

type AuthController struct {
	userService  *service.UserService
	sessionCodec *token.Codec
	actionCodec  *token.Codec
}

func NewAuthController(userService *service.UserService, sessionCodec, actionCodec *token.Codec) *AuthController {
	return &AuthController{
		userService:  userService,
		sessionCodec: sessionCodec,
		actionCodec:  actionCodec,
	}
}

// Login exchanges a username/password form body for a bearer token.
func (c *AuthController) Login(ctx echo.Context) error {
	var req dto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if req.Username == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "username and password are required"})
	}

	user, err := c.userService.Authenticate(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "invalid email or password"})
		}
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	accessToken, err := c.sessionCodec.Issue(user.Email)
	if err != nil {
		logrus.WithError(err).Error("failed to issue session token")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}

// GeneratePassword returns a random password satisfying the strength rule.
func (c *AuthController) GeneratePassword(ctx echo.Context) error {
	generated, err := password.Generate()
	if err != nil {
		logrus.WithError(err).Error("password generation failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.PasswordResponse{Password: generated})
}

// Register creates an inactive account and queues the activation email. The
// acknowledgement is generic; only a duplicate email surfaces as an error.
func (c *AuthController) Register(ctx echo.Context) error {
	var req dto.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if req.Email == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "email and password are required"})
	}

	if _, err := c.userService.RegisterUser(ctx.Request().Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "email is already taken"})
		}
		if errors.Is(err, service.ErrWeakPassword) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Description: registerAck})
}

// VerifyUser activates the account named by the action token in the query
// string.
func (c *AuthController) VerifyUser(ctx echo.Context) error {
	claims, err := c.actionCodec.Decode(ctx.QueryParam("token"))
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid token"})
	}

	user, err := c.userService.ActivateUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, service.ErrUserNotRegistered) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not registered"})
		}
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// RecoverPassword queues a reset email for the address in the path. The
// response is identical whether or not the account exists.
func (c *AuthController) RecoverPassword(ctx echo.Context) error {
	if err := c.userService.StartPasswordReset(ctx.Request().Context(), ctx.Param("email")); err != nil {
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Description: recoveryAck})
}

// ResetPassword completes a password reset authorized by an action token.
func (c *AuthController) ResetPassword(ctx echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if req.Token == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "token and password are required"})
	}

	claims, err := c.actionCodec.Decode(req.Token)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid token"})
	}

	if err := c.userService.FinishPasswordReset(ctx.Request().Context(), claims.Subject, req.Password); err != nil {
		if errors.Is(err, service.ErrWeakPassword) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Description: "Password updated successfully."})
}
