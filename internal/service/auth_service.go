package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminTokenIssuer   = "dfinsell-admin"
	defaultTokenExpiry = 24 * time.Hour
)

// ErrAdminTokenInvalid 管理员令牌无效或管理员已不存在
var ErrAdminTokenInvalid = errors.New("invalid admin token")

// AuthService 管理员认证
type AuthService struct {
	cfg       *config.Config
	adminRepo repository.AdminRepository
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.Config, adminRepo repository.AdminRepository) *AuthService {
	return &AuthService{cfg: cfg, adminRepo: adminRepo}
}

// JWTClaims 管理员令牌声明
type JWTClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// HashPassword bcrypt 哈希
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) tokenTTL() time.Duration {
	if s.cfg.JWT.ExpireHours <= 0 {
		return defaultTokenExpiry
	}
	return time.Duration(s.cfg.JWT.ExpireHours) * time.Hour
}

// GenerateJWT 签发管理员令牌
func (s *AuthService) GenerateJWT(admin *models.Admin) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL())
	claims := JWTClaims{
		AdminID:  admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminTokenIssuer,
			Subject:   strconv.FormatUint(uint64(admin.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseJWT 校验签名、算法、签发方与有效期
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	if s.cfg.JWT.SecretKey == "" {
		return nil, ErrAdminTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(adminTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil || !token.Valid || claims.AdminID == 0 {
		return nil, ErrAdminTokenInvalid
	}
	return claims, nil
}

// Authenticate 解析令牌并加载管理员；管理员被删除后旧令牌随即失效
func (s *AuthService) Authenticate(tokenString string) (*models.Admin, error) {
	claims, err := s.ParseJWT(tokenString)
	if err != nil {
		return nil, err
	}
	admin, err := s.adminRepo.GetByID(claims.AdminID)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrAdminTokenInvalid
	}
	return admin, nil
}

// Login 校验用户名密码，签发令牌并记录登录时间
func (s *AuthService) Login(username, password string) (*models.Admin, string, time.Time, error) {
	admin, err := s.adminRepo.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.GenerateJWT(admin)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	now := time.Now()
	admin.LastLoginAt = &now
	if err := s.adminRepo.Update(admin); err != nil {
		return nil, "", time.Time{}, err
	}
	return admin, token, expiresAt, nil
}
