package routes

import (
	"time"

	"mingle/handlers"
	"mingle/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
			"ws":     "WebSocket available at /ws",
		})
	})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8080", "http://127.0.0.1:8080", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes (no auth required)
	public := router.Group("/api")
	public.Use(middleware.RateLimitMiddleware())
	public.POST("/signup", handlers.Signup)
	public.POST("/login", handlers.Login)
	public.GET("/vapid-public-key", handlers.GetVapidPublicKey)

	// Protected routes group
	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware())

	// Profile (read-only identity boundary plus own-profile edits)
	protected.GET("/me", handlers.GetMyProfile)
	protected.PUT("/me", handlers.UpdateMyProfile)
	protected.GET("/user/:id", handlers.GetUser)

	// Conversations
	protected.GET("/chats", handlers.GetChatList)
	protected.DELETE("/chats/:id", handlers.DeleteChat)
	protected.POST("/chats/:id/read", handlers.MarkChatRead)
	protected.GET("/chats/:id/messages", handlers.GetMessages)

	// Messages: the conversation is addressed by the peer, the id is derived
	protected.POST("/messages/:otherUserId", handlers.SendMessage)

	// Push subscriptions
	protected.POST("/subscribe", handlers.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
			c.JSON(404, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.Next()
	})

	return router
}
