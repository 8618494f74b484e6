package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Widget WidgetConfig
	AI     AIConfig
	Travel TravelConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig("PORT", "8000")
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	travel, err := loadTravelConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Widget: widget, AI: ai, Travel: travel}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(key, defaultPort string) (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv(key))
	if port == "" {
		port = defaultPort
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid %s value: %q", key, port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// WidgetConfig 描述聊天小组件及其远端对话端点。
type WidgetConfig struct {
	Server      ServerConfig
	EndpointURL string
	Timeout     time.Duration
	Policy      string // 发送策略名称，由调用方解析
}

func loadWidgetConfig() (WidgetConfig, error) {
	server, err := loadServerConfig("WIDGET_PORT", "5173")
	if err != nil {
		return WidgetConfig{}, err
	}

	timeout, err := parseDurationEnv("CHAT_ENDPOINT_TIMEOUT", 30*time.Second)
	if err != nil {
		return WidgetConfig{}, err
	}

	return WidgetConfig{
		Server:      server,
		EndpointURL: getEnvOrDefault("CHAT_ENDPOINT_URL", "http://127.0.0.1:8000/chat"),
		Timeout:     timeout,
		Policy:      strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_SEND_POLICY"))),
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey            string
	AccessKey         string
	SecretKey         string
	Model             string
	BaseURL           string
	Region            string
	Temperature       *float64
	TopP              *float64
	MaxTokens         *int
	IntentLLMEnabled  bool
	ComposeLLMEnabled bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	intentEnabled, err := parseBoolEnv("INTENT_LLM_ENABLED", false)
	if err != nil {
		return AIConfig{}, err
	}

	composeEnabled, err := parseBoolEnv("COMPOSE_LLM_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:            strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:         strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:         strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:             strings.TrimSpace(os.Getenv("Model")),
		BaseURL:           getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:            getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
		IntentLLMEnabled:  intentEnabled,
		ComposeLLMEnabled: composeEnabled,
	}, nil
}

// TravelConfig 描述地理编码、天气与景点查询所需的上游服务。
type TravelConfig struct {
	NominatimURL  string
	OverpassURL   string
	OpenMeteoURL  string
	UserAgent     string
	DefaultRegion string
	PlacesRadius  int
	PlacesLimit   int
	HTTPTimeout   time.Duration
}

func loadTravelConfig() (TravelConfig, error) {
	radius, err := parseIntEnv("TRAVEL_PLACES_RADIUS", 5000)
	if err != nil {
		return TravelConfig{}, err
	}
	if radius <= 0 {
		return TravelConfig{}, fmt.Errorf("invalid TRAVEL_PLACES_RADIUS value %d: must be positive", radius)
	}

	limit, err := parseIntEnv("TRAVEL_PLACES_LIMIT", 5)
	if err != nil {
		return TravelConfig{}, err
	}
	if limit < 1 {
		limit = 1
	}

	timeout, err := parseDurationEnv("TRAVEL_HTTP_TIMEOUT", 25*time.Second)
	if err != nil {
		return TravelConfig{}, err
	}

	region := "India"
	if raw, ok := os.LookupEnv("TRAVEL_DEFAULT_REGION"); ok {
		// 显式设置为空表示不追加默认地区。
		region = strings.TrimSpace(raw)
	}

	return TravelConfig{
		NominatimURL:  getEnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		OverpassURL:   getEnvOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		OpenMeteoURL:  getEnvOrDefault("OPEN_METEO_URL", "https://api.open-meteo.com/v1/forecast"),
		UserAgent:     getEnvOrDefault("TRAVEL_USER_AGENT", "chat-widget-travel-assistant/1.0"),
		DefaultRegion: region,
		PlacesRadius:  radius,
		PlacesLimit:   limit,
		HTTPTimeout:   timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
