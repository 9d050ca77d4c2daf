package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/services"
)

type ChatbotController struct {
	chat *services.ChatService
}

func NewChatbotController(chat *services.ChatService) *ChatbotController {
	return &ChatbotController{chat: chat}
}

type chatRequest struct {
	Message string `json:"message"`
}

func (cc *ChatbotController) Reply(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	reply, err := cc.chat.Reply(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}
