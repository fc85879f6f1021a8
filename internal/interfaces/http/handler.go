package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pageflow/internal/usecases"
)

// SetupRoutes wires the public webhook surface and the JWT-protected
// dashboard API onto the engine.
func SetupRoutes(
	r *gin.Engine,
	auth *usecases.AuthUsecase,
	webhook *WebhookHandler,
	pages *PageHandler,
	flows *FlowHandler,
	inbox *InboxHandler,
	dashboard *DashboardHandler,
	middleware *Middleware,
) {
	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20)) // 1MB max request size
	r.Use(middleware.CORSMiddleware())

	// Public webhook endpoint (Facebook calls this, no JWT)
	r.GET("/webhook/meta", webhook.Verify)
	r.POST("/webhook/meta", webhook.Receive)

	// Public Auth Routes
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		authGroup.POST("/register", func(c *gin.Context) {
			var regReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&regReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			// Validate inputs
			if !ValidSlug(regReq.Username) || len(regReq.Password) < 6 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
				return
			}
			if err := auth.Register(c.Request.Context(), regReq.Username, regReq.Password); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"status": "registered"})
		})
	}

	// Protected Dashboard Routes
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		pages.RegisterRoutes(api)
		flows.RegisterRoutes(api)
		inbox.RegisterRoutes(api)
		dashboard.RegisterRoutes(api)
	}
}
