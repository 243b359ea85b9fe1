package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Fi44er/community_payments/config"
	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/service"
	"github.com/Fi44er/community_payments/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Payments interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	VerifyPayment(ctx context.Context, id service.Identity, reference string) (*service.VerifyResult, error)
	InitializePayment(ctx context.Context, id service.Identity, amount decimal.Decimal) (*service.InitializeResult, error)
	ListPendingFailures(ctx context.Context, id service.Identity) ([]models.PaymentFailure, error)
	RetryFailure(ctx context.Context, id service.Identity, failureID string) (*service.RetryResult, error)
	EnrollRecurring(ctx context.Context, id service.Identity, amount decimal.Decimal) (*service.EnrollResult, error)
	UpdateRecurringAmount(ctx context.Context, id service.Identity, amount decimal.Decimal) (decimal.Decimal, error)
	CancelRecurring(ctx context.Context, id service.Identity) error
	RequestDedicatedAccount(ctx context.Context, id service.Identity) (*service.DedicatedAccountResult, error)
}

type Inbox interface {
	List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) (bool, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

// Subscriber upgrades a request into a live notification stream.
type Subscriber interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uint) error
}

type Server struct {
	router   *gin.Engine
	http     *http.Server
	payments Payments
	inbox    Inbox
	live     Subscriber
	logger   *utils.Logger
}

func NewServer(cfg *config.Config, payments Payments, inbox Inbox, live Subscriber, logger *utils.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.Origins())))

	s := &Server{
		router:   router,
		payments: payments,
		inbox:    inbox,
		live:     live,
		logger:   logger,
	}
	s.routes(cfg.JWTSecret)

	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// cors.New panics on an empty origin list.
	if len(origins) == 0 {
		conf.AllowOrigins = nil
		conf.AllowAllOrigins = true
		conf.AllowCredentials = false
	}
	return conf
}

func (s *Server) routes(jwtSecret string) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	s.router.POST("/api/webhooks/paystack", s.handleWebhook)

	auth := Authenticate(jwtSecret)

	payments := s.router.Group("/api/payments", auth)
	{
		payments.POST("/initialize", s.handleInitialize)
		payments.POST("/verify", s.handleVerify)
		payments.GET("/failures", s.handleListFailures)
		payments.POST("/failures/retry", s.handleRetry)
		payments.POST("/recurring", s.handleEnrollRecurring)
		payments.PUT("/recurring", s.handleUpdateRecurring)
		payments.DELETE("/recurring", s.handleCancelRecurring)
		payments.POST("/dedicated-account", s.handleDedicatedAccount)
	}

	notifications := s.router.Group("/api/notifications", auth)
	{
		notifications.GET("", s.handleListNotifications)
		notifications.GET("/unread-count", s.handleUnreadCount)
		notifications.POST("/:id/read", s.handleMarkRead)
		notifications.POST("/read-all", s.handleMarkAllRead)
	}

	s.router.GET("/ws/notifications", auth, s.handleSubscribe)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Run() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
