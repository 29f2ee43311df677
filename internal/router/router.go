package router

import (
	"net/http"

	"github.com/anonto42/writer/backend/internal/handlers"
	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/anonto42/writer/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Deps carries everything the routes need. Google and Firebase stay nil when
// the provider is not configured; UploadDir is empty when images go to a bucket.
type Deps struct {
	Identity      *services.IdentityService
	Feed          *services.FeedService
	Graph         *services.GraphService
	Engagement    *services.EngagementService
	Posts         *services.PostService
	Messaging     *services.MessagingService
	Notifications *services.NotificationService

	Sessions *middleware.Sessions
	Google   handlers.OAuthProvider
	Firebase handlers.IDTokenVerifier
	Metrics  *metrics.Metrics
	DB       handlers.Pinger

	UploadDir    string
	SecureCookie bool
	Log          *logrus.Logger
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, d *Deps) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			entry := d.Log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
			})
			if id, ok := c.Get(middleware.ContextUserID).(uint); ok {
				entry = entry.WithField("user_id", id)
			}
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(eMiddleware.CORS())
	e.Use(eMiddleware.Secure())
	e.Use(eMiddleware.BodyLimit("10M"))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(eMiddleware.CSRFWithConfig(eMiddleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:csrf_token",
		ContextKey:     "csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   d.SecureCookie,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			// A stale form gets a warning and goes back where it came from.
			d.Sessions.Flash(c, "The form has expired. Please try again.")
			target := c.Request().Referer()
			if target == "" {
				target = "/"
			}
			return c.Redirect(http.StatusSeeOther, target)
		},
	}))
	e.Use(d.Sessions.LoadUser(d.Identity))
	d.Log.Info("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d *Deps) {
	e.GET("/health", handlers.HealthCheck(d.DB))
	if d.UploadDir != "" {
		e.Static("/uploads", d.UploadDir)
	}

	g := e.Group("")
	requireLogin := middleware.RequireLogin()

	handlers.NewAuthHandler(d.Identity, d.Sessions, d.Google, d.Firebase, d.Log).RegisterAuthRoutes(g, requireLogin)
	d.Log.Info("Auth routes configured.")

	handlers.NewFeedHandler(d.Feed).RegisterFeedRoutes(g, requireLogin)
	handlers.NewUserHandler(d.Identity, d.Graph, d.Feed).RegisterProfileRoutes(g, requireLogin)
	handlers.NewFollowHandler(d.Graph, d.Identity).RegisterFollowRoutes(g, requireLogin)
	d.Log.Info("Feed, profile and follow routes configured.")

	handlers.NewPostHandler(d.Posts).RegisterPostRoutes(g, requireLogin)
	handlers.NewLikeHandler(d.Engagement).RegisterLikeRoutes(g, requireLogin)
	handlers.NewCommentHandler(d.Engagement).RegisterCommentRoutes(g, requireLogin)
	handlers.NewSavedPostHandler(d.Engagement).RegisterSavedPostRoutes(g, requireLogin)
	d.Log.Info("Post routes configured.")

	handlers.NewMessageHandler(d.Messaging, d.Identity).RegisterMessageRoutes(g, requireLogin)
	handlers.NewNotificationHandler(d.Notifications).RegisterNotificationRoutes(g, requireLogin)
	d.Log.Info("Messaging and notification routes configured.")

	d.Log.Info("All routes configured.")
}
