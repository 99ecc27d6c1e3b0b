package core

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const birthdayLayout = "2006-01-02"

// RouterDeps are the collaborators the HTTP layer is wired with.
type RouterDeps struct {
	Logger   *zap.Logger
	Gateway  *AuthGateway
	Users    UserRepository
	Movies   MovieCatalog
	Database PingFunc
	Cache    PingFunc
}

type registerRequest struct {
	Username string `json:"Username" form:"Username" binding:"required,alphanum,min=5"`
	Password string `json:"Password" form:"Password" binding:"required"`
	Email    string `json:"Email" form:"Email" binding:"required,email"`
	Birthday string `json:"Birthday" form:"Birthday" binding:"omitempty,datetime=2006-01-02"`
}

type updateUserRequest struct {
	Username *string `json:"Username" binding:"omitempty,alphanum,min=5"`
	Password *string `json:"Password" binding:"omitempty,min=1"`
	Email    *string `json:"Email" binding:"omitempty,email"`
	Birthday *string `json:"Birthday" binding:"omitempty,datetime=2006-01-02"`
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, deps RouterDeps) *gin.Engine {
	startedAt := time.Now()
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(log))
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("panic recovered", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path))
		abortError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something broke!")
	}))
	r.Use(CORSMiddleware(cfg))

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to myFlix!")
	})
	r.GET("/documentation", func(c *gin.Context) {
		c.File(filepath.Join(cfg.PublicDir, "documentation.html"))
	})
	r.Static("/public", cfg.PublicDir)

	r.GET("/healthz", func(c *gin.Context) {
		st := CollectSystemStatus(c.Request.Context(), deps.Database, deps.Cache, startedAt)
		status := http.StatusOK
		if !st.Healthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, st)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users := deps.Users
	movies := deps.Movies

	r.POST("/login", deps.Gateway.Login)

	r.POST("/users", func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
			return
		}
		birthday, err := parseBirthday(req.Birthday)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Birthday must be YYYY-MM-DD")
			return
		}
		hash, err := HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
			return
		}

		rec, err := users.Create(c.Request.Context(), NewUser{
			Username:     req.Username,
			PasswordHash: hash,
			Email:        req.Email,
			Birthday:     birthday,
		})
		if err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				respondError(c, http.StatusConflict, "USERNAME_TAKEN", req.Username+" already exists")
				return
			}
			c.Error(err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
			return
		}
		c.JSON(http.StatusCreated, rec.Identity())
	})

	authed := r.Group("/", deps.Gateway.RequireToken())
	{
		authed.GET("/movies", func(c *gin.Context) {
			list, err := movies.List(c.Request.Context())
			if err != nil {
				c.Error(err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list movies")
				return
			}
			c.JSON(http.StatusOK, list)
		})

		authed.GET("/movies/:title", func(c *gin.Context) {
			m, err := movies.FindByTitle(c.Request.Context(), c.Param("title"))
			if !respondLookup(c, err, "movie not found") {
				return
			}
			c.JSON(http.StatusOK, m)
		})

		authed.GET("/genres/:name", func(c *gin.Context) {
			g, err := movies.FindGenre(c.Request.Context(), c.Param("name"))
			if !respondLookup(c, err, "genre not found") {
				return
			}
			c.JSON(http.StatusOK, g)
		})

		authed.GET("/directors/:name", func(c *gin.Context) {
			d, err := movies.FindDirector(c.Request.Context(), c.Param("name"))
			if !respondLookup(c, err, "director not found") {
				return
			}
			c.JSON(http.StatusOK, d)
		})

		authed.GET("/users/:username", func(c *gin.Context) {
			rec, err := users.FindByUsername(c.Request.Context(), c.Param("username"))
			if !respondLookup(c, err, "user not found") {
				return
			}
			c.JSON(http.StatusOK, rec.Identity())
		})

		authed.PUT("/users/:username", func(c *gin.Context) {
			me, ok := requireSelf(c)
			if !ok {
				return
			}
			var req updateUserRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
				return
			}

			upd := UserUpdate{Username: req.Username, Email: req.Email}
			if req.Birthday != nil {
				b, err := parseBirthday(*req.Birthday)
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Birthday must be YYYY-MM-DD")
					return
				}
				upd.Birthday = b
			}
			if req.Password != nil {
				hash, err := HashPassword(*req.Password, cfg.BcryptCost)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
					return
				}
				upd.PasswordHash = &hash
			}

			rec, err := users.Update(c.Request.Context(), me.ID, upd)
			if errors.Is(err, ErrUsernameTaken) {
				respondError(c, http.StatusConflict, "USERNAME_TAKEN", "username already exists")
				return
			}
			if !respondLookup(c, err, "user not found") {
				return
			}
			c.JSON(http.StatusOK, rec.Identity())
		})

		authed.DELETE("/users/:username", func(c *gin.Context) {
			me, ok := requireSelf(c)
			if !ok {
				return
			}
			if !respondLookup(c, users.Delete(c.Request.Context(), me.ID), "user not found") {
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": me.Username + " was deleted."})
		})

		authed.POST("/users/:username/movies/:movieID", func(c *gin.Context) {
			me, ok := requireSelf(c)
			if !ok {
				return
			}
			rec, err := users.AddFavorite(c.Request.Context(), me.ID, c.Param("movieID"))
			if !respondLookup(c, err, "movie not found") {
				return
			}
			c.JSON(http.StatusOK, rec.Identity())
		})

		authed.DELETE("/users/:username/movies/:movieID", func(c *gin.Context) {
			me, ok := requireSelf(c)
			if !ok {
				return
			}
			rec, err := users.RemoveFavorite(c.Request.Context(), me.ID, c.Param("movieID"))
			if !respondLookup(c, err, "user not found") {
				return
			}
			c.JSON(http.StatusOK, rec.Identity())
		})
	}

	return r
}

// requireSelf allows a route to act only on the authenticated user.
func requireSelf(c *gin.Context) (User, bool) {
	me, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return User{}, false
	}
	if me.Username != c.Param("username") {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "cannot modify another user")
		return User{}, false
	}
	return me, true
}

// respondLookup writes 404/500 for a failed repository call and reports
// whether the handler may continue.
func respondLookup(c *gin.Context, err error, notFound string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrRecordNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", notFound)
	default:
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something broke!")
	}
	return false
}

func parseBirthday(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(birthdayLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validationMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "Key: ") {
		return "invalid request: " + msg
	}
	return "invalid request body"
}
