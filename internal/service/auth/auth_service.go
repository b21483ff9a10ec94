// Package auth 提供认证服务
package auth

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/crypto"
	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/jwt"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/common/utils"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

// AuthService 认证服务
type AuthService struct {
	db         *gorm.DB
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
}

// NewAuthService 创建认证服务
func NewAuthService(db *gorm.DB, userRepo *repository.UserRepository, jwtManager *jwt.Manager) *AuthService {
	return &AuthService{
		db:         db,
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	FullName string  `json:"full_name" binding:"required"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserInfo 用户信息
type UserInfo struct {
	ID       int64   `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User      *UserInfo      `json:"user"`
	TokenPair *jwt.TokenPair `json:"token"`
}

func toUserInfo(user *models.User) *UserInfo {
	return &UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Phone:    user.Phone,
		Role:     user.Role,
	}
}

// Register 注册，管理员账号不允许自助注册
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	if !utils.ValidateEmail(req.Email) {
		return nil, errors.ErrInvalidParams.WithMessage("邮箱格式错误")
	}
	if req.Phone != nil && !utils.ValidatePhone(*req.Phone) {
		return nil, errors.ErrInvalidParams.WithMessage("手机号格式错误")
	}

	role := req.Role
	switch role {
	case "":
		role = models.UserRoleGuest
	case models.UserRoleGuest, models.UserRoleHost:
	default:
		return nil, errors.ErrInvalidParams.WithMessage("不支持的角色")
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.ErrAlreadyExists.WithMessage("邮箱已注册")
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	user := &models.User{
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID, jwt.UserTypeUser, user.Role)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	fields := []zap.Field{
		logger.Int64("user_id", user.ID),
		logger.String("email", crypto.MaskEmail(user.Email)),
		logger.String("role", user.Role),
	}
	if user.Phone != nil {
		fields = append(fields, logger.String("phone", crypto.MaskPhone(*user.Phone)))
	}
	logger.Info("新用户注册", fields...)

	return &LoginResponse{User: toUserInfo(user), TokenPair: tokenPair}, nil
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPasswordError
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, errors.ErrPasswordError
	}
	if user.Status == models.UserStatusDisabled {
		return nil, errors.ErrAccountDisabled
	}

	userType := jwt.UserTypeUser
	if user.IsAdmin() {
		userType = jwt.UserTypeAdmin
	}
	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID, userType, user.Role)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	return &LoginResponse{User: toUserInfo(user), TokenPair: tokenPair}, nil
}

// RefreshToken 刷新令牌
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	tokenPair, err := s.jwtManager.RefreshToken(refreshToken)
	if err != nil {
		if err == jwt.ErrTokenExpired {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrTokenInvalid
	}
	return tokenPair, nil
}

// GetProfile 查询当前用户
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toUserInfo(user), nil
}
