package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/repository"
)

// GatewaySetting 网关设置
type GatewaySetting struct {
	Enabled             bool   `json:"enabled"`
	Sandbox             bool   `json:"sandbox"`
	OrderStatus         string `json:"order_status"`
	ShowConsentCheckbox bool   `json:"show_consent_checkbox"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	AdminLoginCaptcha   bool   `json:"admin_login_captcha"`
}

// Mode 当前支付模式
func (g GatewaySetting) Mode() string {
	if g.Sandbox {
		return constants.PaymentModeSandbox
	}
	return constants.PaymentModeLive
}

// SettingService 设置业务服务
type SettingService struct {
	repo     repository.SettingRepository
	defaults config.GatewayConfig
}

// NewSettingService 创建设置服务
func NewSettingService(repo repository.SettingRepository, defaults config.GatewayConfig) *SettingService {
	return &SettingService{repo: repo, defaults: defaults}
}

func (s *SettingService) defaultGateway() GatewaySetting {
	return GatewaySetting{
		Enabled:             s.defaults.Enabled,
		Sandbox:             s.defaults.Sandbox,
		OrderStatus:         normalizeStatus(s.defaults.OrderStatus),
		ShowConsentCheckbox: s.defaults.ShowConsentCheckbox,
		Title:               strings.TrimSpace(s.defaults.Title),
		Description:         strings.TrimSpace(s.defaults.Description),
		AdminLoginCaptcha:   s.defaults.AdminLoginCaptcha,
	}
}

// GetGateway 获取网关设置（数据库值覆盖配置默认值）
func (s *SettingService) GetGateway() (GatewaySetting, error) {
	result := s.defaultGateway()
	setting, err := s.repo.GetByKey(constants.SettingKeyDfinsellGateway)
	if err != nil {
		return result, err
	}
	if setting == nil {
		return result, nil
	}
	value := setting.ValueJSON
	if raw, ok := value[constants.SettingFieldEnabled]; ok {
		result.Enabled = parseSettingBool(raw, result.Enabled)
	}
	if raw, ok := value[constants.SettingFieldSandbox]; ok {
		result.Sandbox = parseSettingBool(raw, result.Sandbox)
	}
	if raw, ok := value[constants.SettingFieldConsent]; ok {
		result.ShowConsentCheckbox = parseSettingBool(raw, result.ShowConsentCheckbox)
	}
	if raw, ok := value[constants.SettingFieldOrderStatus]; ok {
		result.OrderStatus = normalizeStatus(fmt.Sprint(raw))
	}
	if raw, ok := value[constants.SettingFieldTitle].(string); ok && strings.TrimSpace(raw) != "" {
		result.Title = strings.TrimSpace(raw)
	}
	if raw, ok := value[constants.SettingFieldDescription].(string); ok {
		result.Description = strings.TrimSpace(raw)
	}
	if raw, ok := value[constants.SettingFieldLoginCaptcha]; ok {
		result.AdminLoginCaptcha = parseSettingBool(raw, result.AdminLoginCaptcha)
	}
	return result, nil
}

// UpdateGateway 保存网关设置
func (s *SettingService) UpdateGateway(input GatewaySetting) (GatewaySetting, error) {
	input.OrderStatus = normalizeStatus(input.OrderStatus)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if !isValidTargetStatus(input.OrderStatus) {
		return GatewaySetting{}, fmt.Errorf("%w: %s", ErrTargetStatusInvalid, input.OrderStatus)
	}
	if input.Title == "" {
		input.Title = s.defaultGateway().Title
	}
	value := models.JSON{
		constants.SettingFieldEnabled:      input.Enabled,
		constants.SettingFieldSandbox:      input.Sandbox,
		constants.SettingFieldOrderStatus:  input.OrderStatus,
		constants.SettingFieldConsent:      input.ShowConsentCheckbox,
		constants.SettingFieldTitle:        input.Title,
		constants.SettingFieldDescription:  input.Description,
		constants.SettingFieldLoginCaptcha: input.AdminLoginCaptcha,
	}
	if _, err := s.repo.Upsert(constants.SettingKeyDfinsellGateway, value); err != nil {
		return GatewaySetting{}, err
	}
	return input, nil
}

// resolveTargetStatus 读取并校验商户配置的支付成功目标状态
func (s *SettingService) resolveTargetStatus(setting GatewaySetting) (string, error) {
	status := normalizeStatus(setting.OrderStatus)
	if !isOrderStatus(status) || !isValidTargetStatus(status) {
		return "", fmt.Errorf("%w: %s", ErrTargetStatusInvalid, setting.OrderStatus)
	}
	return status, nil
}

func parseSettingBool(value interface{}, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "on":
			return true
		case "no", "off", "":
			return false
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}
