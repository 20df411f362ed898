package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/config"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/insight"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/store"
)

type App struct {
	cfg    config.Config
	db     *pgxpool.Pool
	store  store.Store
	engine *insight.Service
}

type AuthUser struct {
	ID        string
	AccountID string
	Name      string
}

func New(cfg config.Config, pool *pgxpool.Pool) *App {
	st := store.NewPostgres(pool)
	return &App{
		cfg:    cfg,
		db:     pool,
		store:  st,
		engine: insight.New(st),
	}
}

// NewWithStore wires an explicit store and engine, used by tests.
func NewWithStore(cfg config.Config, st store.Store, engine *insight.Service) *App {
	return &App{cfg: cfg, store: st, engine: engine}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.GET("/aggregation", a.getAggregation)
	api.GET("/analytics/patterns/:childId", a.getPatternAnalysis)
	api.GET("/analytics/correlations/:childId", a.getCorrelations)
	api.GET("/analytics/comparison", a.getComparison)
	api.GET("/analytics/insights", a.getInsights)
	api.GET("/analytics/predictions", a.getPredictions)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "twins-assistant-aggregation",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.resolveUser(c.Request.Context(), sub, claims)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set("authUser", user)
		c.Next()
	}
}

// resolveUser loads the caller's account membership. When the App runs
// without a database (tests), the account comes from the token claims.
func (a *App) resolveUser(ctx context.Context, userID string, claims jwt.MapClaims) (AuthUser, error) {
	if a.db == nil {
		accountID, _ := claims["account_id"].(string)
		if strings.TrimSpace(accountID) == "" {
			return AuthUser{}, errors.New("Token account missing")
		}
		name, _ := claims["name"].(string)
		return AuthUser{ID: userID, AccountID: accountID, Name: name}, nil
	}

	user := AuthUser{}
	var accountID *string
	err := a.db.QueryRow(
		ctx,
		`SELECT id, "accountId", name FROM "User" WHERE id = $1`,
		userID,
	).Scan(&user.ID, &accountID, &user.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, errors.New("User not found")
	}
	if err != nil {
		return AuthUser{}, err
	}
	if accountID == nil || strings.TrimSpace(*accountID) == "" {
		return AuthUser{}, errors.New("User not part of an account")
	}
	user.AccountID = *accountID
	return user, nil
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
