package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const nonceIssuer = "dfinsell-nonce"

// NonceClaims 一次性令牌声明
type NonceClaims struct {
	Action string `json:"action"`
	jwt.RegisteredClaims
}

// NonceService 会话/回跳令牌签发与校验
type NonceService struct {
	secret    []byte
	nonceRepo repository.NonceRepository
	now       func() time.Time
}

// NewNonceService 创建令牌服务
func NewNonceService(secret string, nonceRepo repository.NonceRepository) *NonceService {
	return &NonceService{
		secret:    []byte(secret),
		nonceRepo: nonceRepo,
		now:       time.Now,
	}
}

// Issue 签发绑定动作与主体的令牌
func (s *NonceService) Issue(action, subject string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(action) == "" || strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("nonce action and subject are required")
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := NonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    nonceIssuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify 校验令牌签名、动作与主体（不消费）
func (s *NonceService) Verify(action, subject, token string) (*NonceClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNonceInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(nonceIssuer),
		jwt.WithSubject(subject),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := parser.ParseWithClaims(token, &NonceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonceInvalid, err)
	}
	claims, ok := parsed.Claims.(*NonceClaims)
	if !ok || !parsed.Valid || claims.Action != action {
		return nil, ErrNonceInvalid
	}
	return claims, nil
}

// Consume 校验并消费令牌，重复使用返回 ErrNonceInvalid
func (s *NonceService) Consume(action, subject, token string) error {
	claims, err := s.Verify(action, subject, token)
	if err != nil {
		return err
	}
	expiresAt := s.now()
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	ok, err := s.nonceRepo.Consume(claims.ID, action, expiresAt)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: already used", ErrNonceInvalid)
	}
	return nil
}

// PurgeExpired 清理过期的消费记录
func (s *NonceService) PurgeExpired() (int64, error) {
	return s.nonceRepo.DeleteExpired(s.now())
}
