package service

import (
	"strings"
	"time"

	"github.com/dfinsell-next/internal/config"

	"github.com/mojocn/base64Captcha"
)

// 去掉易混淆字符，答案统一小写
const captchaSource = "23456789abcdefghjkmnpqrstuvwxyz"

// CaptchaVerifyPayload 验证码校验载荷
type CaptchaVerifyPayload struct {
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// CaptchaChallenge 登录验证码挑战；未启用时仅返回 Enabled=false
type CaptchaChallenge struct {
	Enabled     bool   `json:"enabled"`
	CaptchaID   string `json:"captcha_id,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// CaptchaService 后台登录图片验证码，开关在网关设置中
type CaptchaService struct {
	settingService *SettingService
	image          config.CaptchaImageConfig
	store          base64Captcha.Store
}

// NewCaptchaService 创建验证码服务；store 为空时使用进程内存储
func NewCaptchaService(settingService *SettingService, cfg config.CaptchaConfig, store base64Captcha.Store) *CaptchaService {
	image := normalizeCaptchaImage(cfg.Image)
	if store == nil {
		store = base64Captcha.NewMemoryStore(image.MaxStore, time.Duration(image.ExpireSeconds)*time.Second)
	}
	return &CaptchaService{
		settingService: settingService,
		image:          image,
		store:          store,
	}
}

func normalizeCaptchaImage(image config.CaptchaImageConfig) config.CaptchaImageConfig {
	if image.Length < 4 || image.Length > 8 {
		image.Length = 5
	}
	if image.Width < 100 {
		image.Width = 240
	}
	if image.Height < 40 {
		image.Height = 80
	}
	if image.NoiseCount < 0 {
		image.NoiseCount = 2
	}
	if image.ShowLine < 0 {
		image.ShowLine = 2
	}
	if image.ExpireSeconds < 30 || image.ExpireSeconds > 3600 {
		image.ExpireSeconds = 300
	}
	if image.MaxStore < 100 {
		image.MaxStore = 10240
	}
	return image
}

// LoginEnabled 后台登录是否需要验证码
func (s *CaptchaService) LoginEnabled() (bool, error) {
	if s == nil || s.settingService == nil {
		return false, nil
	}
	setting, err := s.settingService.GetGateway()
	if err != nil {
		return false, err
	}
	return setting.AdminLoginCaptcha, nil
}

// GenerateLoginChallenge 生成登录验证码
func (s *CaptchaService) GenerateLoginChallenge() (*CaptchaChallenge, error) {
	enabled, err := s.LoginEnabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &CaptchaChallenge{Enabled: false}, nil
	}

	driver := base64Captcha.NewDriverString(
		s.image.Height,
		s.image.Width,
		s.image.NoiseCount,
		s.image.ShowLine,
		s.image.Length,
		captchaSource,
		nil,
		base64Captcha.DefaultEmbeddedFonts,
		nil,
	)
	id, b64s, _, err := base64Captcha.NewCaptcha(driver, s.store).Generate()
	if err != nil {
		return nil, err
	}
	return &CaptchaChallenge{
		Enabled:     true,
		CaptchaID:   strings.TrimSpace(id),
		ImageBase64: strings.TrimSpace(b64s),
	}, nil
}

// VerifyLogin 校验登录验证码，验证码一次有效；未启用时直接通过
func (s *CaptchaService) VerifyLogin(payload CaptchaVerifyPayload) error {
	enabled, err := s.LoginEnabled()
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	captchaID := strings.TrimSpace(payload.CaptchaID)
	captchaCode := strings.ToLower(strings.TrimSpace(payload.CaptchaCode))
	if captchaID == "" || captchaCode == "" {
		return ErrCaptchaRequired
	}
	if !s.store.Verify(captchaID, captchaCode, true) {
		return ErrCaptchaInvalid
	}
	return nil
}
