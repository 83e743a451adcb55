package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/aihub/ai-gateway/internal/models"
	"go.uber.org/zap"
)

// StabilityClient Stability AI图像/音乐生成客户端
type StabilityClient struct {
	apiKey      string
	baseURL     string
	engine      string
	musicEngine string
	maxDuration int
	client      *http.Client
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

type imageRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
	StylePreset string       `json:"style_preset,omitempty"`
}

type imageResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finish_reason"`
	} `json:"artifacts"`
}

type audioRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	Duration    int          `json:"duration"`
	Style       string       `json:"style,omitempty"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// NewStabilityClient 创建Stability客户端
func NewStabilityClient(cfg *config.StabilityConfig) *StabilityClient {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		logger.Warn("Stability API key is empty, media provider disabled")
	}

	return &StabilityClient{
		apiKey:      apiKey,
		baseURL:     cfg.BaseURL,
		engine:      cfg.Engine,
		musicEngine: cfg.MusicEngine,
		maxDuration: cfg.MaxDurationSeconds,
		client: &http.Client{
			Timeout: 120 * time.Second, // 音乐生成耗时较长
		},
	}
}

// Generate 按媒体类型生成内容
func (s *StabilityClient) Generate(ctx context.Context, req *MediaRequest) (*MediaResult, error) {
	if s == nil || s.apiKey == "" {
		return nil, fmt.Errorf("stability client not initialized")
	}

	switch req.MediaType {
	case models.MediaTypeImage:
		return s.generateImage(ctx, req.Prompt, req.Style, 1024, 1024)
	case models.MediaTypeAlbumArt:
		// 专辑封面走图像生成，固定尺寸与风格
		prompt := "Album cover art: " + req.Prompt
		if req.Style != "" {
			prompt += ", " + req.Style + " style"
		}
		return s.generateImage(ctx, prompt, "photographic", 512, 512)
	case models.MediaTypeMusic:
		return s.generateMusic(ctx, req.Prompt, req.Style, req.DurationSeconds)
	default:
		return nil, fmt.Errorf("unknown media type: %s", req.MediaType)
	}
}

func (s *StabilityClient) generateImage(ctx context.Context, prompt, style string, width, height int) (*MediaResult, error) {
	reqBody := imageRequest{
		TextPrompts: []textPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    7.0,
		Height:      height,
		Width:       width,
		Samples:     1,
		Steps:       30,
		StylePreset: style,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", s.baseURL, s.engine)
	body, err := s.post(ctx, url, jsonData, "application/json")
	if err != nil {
		return nil, err
	}

	var imgResp imageResponse
	if err := json.Unmarshal(body, &imgResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if len(imgResp.Artifacts) == 0 {
		return nil, fmt.Errorf("no images generated")
	}

	imageData, err := base64.StdEncoding.DecodeString(imgResp.Artifacts[0].Base64)
	if err != nil {
		return nil, fmt.Errorf("解码图像数据失败: %w", err)
	}

	logger.Debug("Stability image generated",
		zap.String("engine", s.engine),
		zap.Int("bytes", len(imageData)))

	return &MediaResult{
		Data:        imageData,
		ContentType: "image/png",
		Engine:      s.engine,
	}, nil
}

func (s *StabilityClient) generateMusic(ctx context.Context, prompt, style string, duration int) (*MediaResult, error) {
	if duration <= 0 {
		duration = 30
	}
	if s.maxDuration > 0 && duration > s.maxDuration {
		duration = s.maxDuration
	}

	reqBody := audioRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		Duration:    duration,
		Style:       style,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	// 音频接口直接返回二进制数据
	url := fmt.Sprintf("%s/v1/generation/%s/text-to-audio", s.baseURL, s.musicEngine)
	audioData, err := s.post(ctx, url, jsonData, "audio/*")
	if err != nil {
		return nil, err
	}

	logger.Debug("Stability music generated",
		zap.String("engine", s.musicEngine),
		zap.Int("duration", duration),
		zap.Int("bytes", len(audioData)))

	return &MediaResult{
		Data:        audioData,
		ContentType: "audio/mpeg",
		Engine:      s.musicEngine,
	}, nil
}

func (s *StabilityClient) post(ctx context.Context, url string, jsonData []byte, accept string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API调用失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp apiError
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Message != "" {
			return nil, fmt.Errorf("Stability API错误: %s (name: %s)", errorResp.Message, errorResp.Name)
		}
		return nil, fmt.Errorf("Stability API错误: HTTP %d - %s", resp.StatusCode, string(body))
	}

	return body, nil
}
