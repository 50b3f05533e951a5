package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextKeyUserID = "user_id"

// userClaims matches the tokens issued by the finance application on login.
type userClaims struct {
	jwt.RegisteredClaims
	ID uint `json:"id"`
}

// APIServer exposes the stored notifications to their owners.
type APIServer struct {
	router *gin.Engine
	store  *Store
}

func NewAPIServer(store *Store, jwtSecret string) *APIServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &APIServer{router: router, store: store}
	s.setupRoutes(requireToken(jwtSecret))
	return s
}

func (s *APIServer) Handler() http.Handler {
	return s.router
}

func (s *APIServer) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api", auth)
	{
		notifications := api.Group("/notifications")
		notifications.GET("", s.handleList(false))
		notifications.GET("/unread", s.handleList(true))
		notifications.PUT("/read-all", s.handleMarkAllAsRead())
		notifications.PUT("/:id/read", s.handleMarkAsRead())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// requireToken verifies the HS256 bearer token and stores the user id in the
// request context.
func requireToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access denied. No token provided"})
			return
		}
		claims := &userClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.ID == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
			return
		}
		c.Set(contextKeyUserID, claims.ID)
		c.Next()
	}
}

func userID(c *gin.Context) uint {
	return c.GetUint(contextKeyUserID)
}

func (s *APIServer) handleList(unreadOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		notifications, err := s.store.ListNotifications(c.Request.Context(), userID(c), unreadOnly)
		if err != nil {
			log.Printf("error fetching notifications: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching notifications"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": notifications})
	}
}

func (s *APIServer) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid notification id"})
			return
		}
		err = s.store.MarkRead(c.Request.Context(), userID(c), uint(id))
		if errors.Is(err, ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Notification not found"})
			return
		}
		if err != nil {
			log.Printf("error updating notification %v: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error updating notification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (s *APIServer) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.store.MarkAllRead(c.Request.Context(), userID(c)); err != nil {
			log.Printf("error updating notifications: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error updating notifications"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
