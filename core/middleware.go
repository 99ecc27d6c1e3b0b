package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ctxUserKey = "auth_user"

const loginFailureMessage = "Something is not right"

// CredentialChecker verifies a username/password pair.
type CredentialChecker interface {
	Verify(ctx context.Context, username, password string) (User, error)
}

// TokenAuthority issues access tokens and resolves them back to identities.
type TokenAuthority interface {
	Issue(u User) (string, error)
	Validate(ctx context.Context, token string) (User, error)
}

// AuthGateway runs the login handshake and guards protected routes.
// It holds no per-request state.
type AuthGateway struct {
	credentials CredentialChecker
	tokens      TokenAuthority
	log         *zap.Logger
}

func NewAuthGateway(credentials CredentialChecker, tokens TokenAuthority, log *zap.Logger) *AuthGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthGateway{credentials: credentials, tokens: tokens, log: log.Named("auth")}
}

type loginRequest struct {
	Username string `json:"Username" form:"Username" binding:"required"`
	Password string `json:"Password" form:"Password" binding:"required"`
}

type loginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type loginFailure struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// Login handles POST /login. Unknown users and wrong passwords get the same
// 400 response; store faults are 5xx.
func (g *AuthGateway) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		loginAttemptsTotal.WithLabelValues("invalid_request").Inc()
		c.JSON(http.StatusBadRequest, loginFailure{Message: loginFailureMessage})
		return
	}

	ctx := c.Request.Context()
	user, err := g.credentials.Verify(ctx, req.Username, req.Password)
	if err != nil {
		loginAttemptsTotal.WithLabelValues(resultLabel(err)).Inc()
		if IsAuthFailure(err) {
			g.log.Warn("login rejected", zap.String("username", req.Username), zap.String("reason", FailureReason(err)))
			c.JSON(http.StatusBadRequest, loginFailure{Message: loginFailureMessage})
			return
		}
		g.storeFault(c, "login lookup failed", err)
		return
	}

	token, err := g.tokens.Issue(user)
	if err != nil {
		loginAttemptsTotal.WithLabelValues("error").Inc()
		g.log.Error("token issue failed", zap.String("username", user.Username), zap.Error(err))
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something broke!")
		return
	}

	loginAttemptsTotal.WithLabelValues("success").Inc()
	g.log.Info("login succeeded", zap.String("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusOK, loginResponse{User: user, Token: token})
}

// RequireToken admits requests carrying a valid bearer token and stores the
// resolved identity on the context. Everything else is aborted before the
// route handler runs.
func (g *AuthGateway) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := g.authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		tokenVerificationsTotal.WithLabelValues(resultLabel(err)).Inc()
		if err != nil {
			if IsAuthFailure(err) {
				g.log.Warn("bearer token rejected", zap.String("path", c.Request.URL.Path), zap.String("reason", FailureReason(err)))
				c.Header("WWW-Authenticate", `Bearer realm="myflix"`)
				abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}
			g.storeFault(c, "token subject lookup failed", err)
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

func (g *AuthGateway) authenticate(ctx context.Context, header string) (User, error) {
	token, err := BearerToken(header)
	if err != nil {
		return User{}, err
	}
	return g.tokens.Validate(ctx, token)
}

// storeFault answers a non-authentication failure. A request the client
// already abandoned is dropped without a body.
func (g *AuthGateway) storeFault(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		g.log.Debug("request canceled during authentication", zap.String("path", c.Request.URL.Path))
		c.Abort()
	case errors.Is(err, ErrStoreTimeout):
		g.log.Error(msg, zap.Error(err))
		abortError(c, http.StatusServiceUnavailable, "STORE_TIMEOUT", "user store did not respond in time")
	default:
		g.log.Error(msg, zap.Error(err))
		c.Error(err)
		abortError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something broke!")
	}
}

// CurrentUser returns the identity attached by RequireToken.
func CurrentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}

// CORSMiddleware allows the configured origins, or any origin without
// credentials when none are configured.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsCfg.MaxAge = 12 * time.Hour
	return cors.New(corsCfg)
}
