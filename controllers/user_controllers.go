package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

var errInvalidCredentials = errors.New("invalid credentials")

type UserController struct {
	DB     *gorm.DB
	Tokens *utils.TokenManager
	Logger *logrus.Logger
}

func NewUserController(db *gorm.DB, tokens *utils.TokenManager, logger *logrus.Logger) *UserController {
	return &UserController{DB: db, Tokens: tokens, Logger: logger}
}

// Login user -> return JWT
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := uc.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		uc.Logger.WithField("email", user.Email).Warn("Login rejected")
		utils.RespondError(c, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	token, err := uc.Tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	uc.Logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("Login successful")

	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":     token,
		"user_role": strings.ToLower(user.Role),
	})
}

// Logout revokes the token the request was authenticated with.
func (uc *UserController) Logout(c *gin.Context) {
	token := c.GetString("token")
	if token == "" {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("no active session"))
		return
	}
	uc.Tokens.Revoke(token)
	uc.Logger.WithField("user_id", c.GetUint("user_id")).Info("Logout successful")
	utils.RespondJSON(c, http.StatusOK, "Logout successful", nil)
}

// GetProfile -> user behind the JWT
func (uc *UserController) GetProfile(c *gin.Context) {
	userIDInterface, exists := c.Get("user_id")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	userID, ok := userIDInterface.(uint)
	if !ok {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("invalid user id type"))
		return
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Profile data retrieved successfully", gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})
}

// SeedAdmin creates the admin account on first start. An existing account is left alone.
func SeedAdmin(db *gorm.DB, email, password string, logger *logrus.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Administrador",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logger.WithField("email", email).Info("Admin user seeded")
	return nil
}
