package services

import (
	"errors"
	"strings"
	"time"

	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/utils"
	"github.com/huangang/taskflow/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=100"`
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    uint      `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=100"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a USER account and returns a token for it.
func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := Validate(req); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, response.NewConflict("user with email " + req.Email + " already exists")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    req.Email,
		Password: hashed,
		FullName: req.FullName,
		Role:     models.RoleUser,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, response.NewConflict("user with email " + req.Email + " already exists")
		}
		return nil, err
	}

	return s.issue(&user, "Registration successful")
}

// Login checks the credentials and issues a token.
func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := Validate(req); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid email or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, response.NewUnauthorized("invalid email or password")
	}

	now := time.Now()
	if err := s.db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, err
	}

	return s.issue(&user, "Login successful")
}

func (s *AuthService) issue(user *models.User, message string) (*AuthResponse, error) {
	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, hours)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(time.Duration(hours) * time.Hour),
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		Message:   message,
	}, nil
}

// GetUserByID returns NOT_FOUND for unknown ids.
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// FindUser satisfies the identity lookup used by the authentication middleware.
func (s *AuthService) FindUser(id uint) (*models.User, error) {
	return s.GetUserByID(id)
}

// CreateAdminIfNotExists seeds the configured ADMIN account. Nothing happens
// when no admin credentials are configured.
func (s *AuthService) CreateAdminIfNotExists(cfg *config.AdminConfig) error {
	if cfg == nil || cfg.Email == "" || cfg.Password == "" {
		return nil
	}
	email := normalizeEmail(cfg.Email)

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	name := cfg.FullName
	if name == "" {
		name = "Administrator"
	}

	return s.db.Create(&models.User{
		Email:    email,
		Password: hashed,
		FullName: name,
		Role:     models.RoleAdmin,
	}).Error
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	if err := Validate(req); err != nil {
		return err
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return fieldError("oldPassword", "is incorrect")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password", hashed).Error
}
