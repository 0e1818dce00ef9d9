package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bigsamfit/bigsam/internal/auth"
	"github.com/bigsamfit/bigsam/internal/chat"
	"github.com/bigsamfit/bigsam/internal/gemini"
	"github.com/bigsamfit/bigsam/internal/models"
)

// User-facing copy. Big Sam speaks Spanish; internals are only logged.
const (
	msgEmptyMessage    = "El mensaje no puede estar vacío, ¡ponle ganas!"
	msgDuplicateEmail  = "¡Este guerrero ya existe! El email ya está registrado."
	msgInvalidUserData = "Datos de usuario inválidos. ¡Inténtalo de nuevo, campeón!"
	msgBadCredentials  = "Email o contraseña incorrectos. ¡Verifica y vuelve a intentarlo!"
	msgNoToken         = "No autorizado, no hay token."
	msgBadToken        = "No autorizado, token falló."
	msgUnknownUser     = "No autorizado, usuario no encontrado."
	msgProfileMissing  = "Usuario no encontrado."
	msgSafetyBlocked   = "Big Sam considera que tu mensaje no es apropiado o seguro. ¡Intenta reformularlo, campeón!"
	msgQuotaExceeded   = "Parece que Big Sam ha hablado demasiado hoy (límite de cuota alcanzado). Intenta más tarde."
	msgChatFailure     = "Big Sam está ocupado en las pesas. Error interno del servidor."
	msgHistoryFailure  = "No pudimos recuperar tu progreso. Error del servidor."
	msgRegisterFailure = "Error en el servidor al registrar. ¡Algo no salió como esperábamos!"
	msgLoginFailure    = "Error en el servidor al iniciar sesión."
)

const currentUserKey = "currentUser"

type Handler struct {
	authService *auth.Service
	chatService *chat.Service
	logger      *zap.SugaredLogger
}

func NewHandler(authService *auth.Service, chatService *chat.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{authService: authService, chatService: chatService, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API de Big Sam funcionando... ¡A levantar hierro!")
	})

	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.handleRegister)
	authGroup.POST("/login", h.handleLogin)
	authGroup.GET("/profile", h.AuthRequired(), h.handleProfile)

	chatGroup := apiGroup.Group("/chat")
	chatGroup.Use(h.AuthRequired())
	chatGroup.POST("/send", h.handleSend)
	chatGroup.GET("/history", h.handleHistory)
}

// AuthRequired validates the bearer token and resolves the account once, so
// downstream handlers receive an explicit authenticated identity.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNoToken})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, err := h.authService.VerifyToken(token)
		if err != nil {
			h.logger.Debugw("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgBadToken})
			return
		}

		user, err := h.authService.Profile(c.Request.Context(), claims.Subject)
		if err != nil {
			h.logger.Debugw("token subject has no account", "user_id", claims.Subject, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgUnknownUser})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CORSMiddleware mirrors the permissive cross-origin policy of the public
// frontend deployment.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sendRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, msgInvalidUserData, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			h.writeError(c, http.StatusBadRequest, msgInvalidUserData, err)
		case errors.Is(err, auth.ErrEmailExists):
			h.writeError(c, http.StatusBadRequest, msgDuplicateEmail, err)
		default:
			h.writeError(c, http.StatusInternalServerError, msgRegisterFailure, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"_id":      result.User.ID,
		"username": result.User.Username,
		"email":    result.User.Email,
		"token":    result.Token,
		"message":  "¡Bienvenido al equipo, " + result.User.Username + "! Ahora a darle con todo.",
	})
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, msgInvalidUserData, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.writeError(c, http.StatusUnauthorized, msgBadCredentials, err)
			return
		}
		h.writeError(c, http.StatusInternalServerError, msgLoginFailure, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"_id":      result.User.ID,
		"username": result.User.Username,
		"email":    result.User.Email,
		"token":    result.Token,
		"message":  "¡De vuelta a la carga, " + result.User.Username + "! Big Sam te esperaba.",
	})
}

func (h *Handler) handleProfile(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		h.writeError(c, http.StatusNotFound, msgProfileMissing, auth.ErrUserNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"_id":      user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (h *Handler) handleSend(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgUnknownUser})
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, msgEmptyMessage, err)
		return
	}

	userMessage, botResponse, err := h.chatService.Send(c.Request.Context(), user.ID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			h.writeError(c, http.StatusBadRequest, msgEmptyMessage, err)
		case errors.Is(err, gemini.ErrSafetyBlocked):
			h.writeError(c, http.StatusInternalServerError, msgSafetyBlocked, err)
		case errors.Is(err, gemini.ErrQuotaExceeded):
			h.writeError(c, http.StatusInternalServerError, msgQuotaExceeded, err)
		default:
			h.writeError(c, http.StatusInternalServerError, msgChatFailure, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userMessage": userMessage,
		"botResponse": botResponse,
	})
}

func (h *Handler) handleHistory(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgUnknownUser})
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, http.StatusInternalServerError, msgHistoryFailure, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func currentUser(c *gin.Context) *models.User {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil
	}

	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func (h *Handler) writeError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		h.logger.Errorw("request failed", "status", status, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"message": message})
}
