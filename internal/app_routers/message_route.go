package approuters

import (
	"Chatline/internal/auth"
	"Chatline/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MessageRouters sets up message history routes. All of them require a Bearer token.
func MessageRouters(router *gin.Engine, container *configuration.Container) {
	messageRoute := router.Group("/api/messages", auth.Middleware(container.Gate))
	{
		messageRoute.POST("", container.MessageHandler.SendMessage)
		messageRoute.DELETE("/:messageId", container.MessageHandler.DeleteMessage)
		messageRoute.GET("/conversation/:userId", container.MessageHandler.GetConversation)
		messageRoute.PUT("/read/:userId", container.MessageHandler.MarkAsRead)
		messageRoute.GET("/unread", container.MessageHandler.GetUnreadCount)
	}
}
