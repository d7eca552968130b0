package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vnkhanh/audiodeck-backend/utils"
)

// NewUpgrader accepts origins listed in allowed; "*" accepts any.
func NewUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || a == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandleJobWebSocket streams progress of the commit tagged with :id.
// When jwtSecret is set the token comes from the "token" query parameter.
func HandleJobWebSocket(hub *Hub, upgrader websocket.Upgrader, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		if jwtSecret != "" {
			token := c.Query("token")
			if token == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
				return
			}
			if _, err := utils.VerifyToken(jwtSecret, token); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := hub.Register(jobID, conn)
		defer hub.Unregister(jobID, conn)

		if hello, err := json.Marshal(gin.H{"type": "connected", "job_id": jobID}); err == nil {
			client.Send <- hello
		}
		log.Debug().Str("job_id", jobID).Msg("job websocket connected")

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		log.Debug().Str("job_id", jobID).Msg("job websocket disconnected")
	}
}
