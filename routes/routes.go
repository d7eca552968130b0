package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/vnkhanh/audiodeck-backend/config"
	"github.com/vnkhanh/audiodeck-backend/controllers"
	"github.com/vnkhanh/audiodeck-backend/middleware"
	"github.com/vnkhanh/audiodeck-backend/ws"
)

func SetupRouter(r *gin.Engine, cfg *config.Config, db *gorm.DB, deck *controllers.DeckController, hub *ws.Hub) *gin.Engine {
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "message": "Anki Audio Generator API"})
	})
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", controllers.HealthCheck(db, hub))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/languages", controllers.GetLanguages)

	decks := api.Group("/decks")
	{
		decks.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		decks.POST("/preview", deck.Preview)
		decks.POST("/commit", deck.Commit)
	}

	r.GET("/ws/jobs/:id", ws.HandleJobWebSocket(hub, ws.NewUpgrader(cfg.CORSOrigins), cfg.JWTSecret))

	return r
}
