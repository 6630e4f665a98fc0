package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/lunasherpa/luna/internal/domain"
)

// Service labels used in RemoteServiceError for each extended endpoint.
const (
	serviceVideo          = "Video API"
	serviceVideoGenerate  = "Video generation API"
	serviceVoice          = "Voice API"
	serviceVoiceGenerate  = "Voice generation API"
	serviceTranscription  = "Transcription API"
	serviceBuild          = "Build API"
	serviceBuildValidate  = "Build validation API"
	defaultVideoQuality   = "high"
	defaultGeneratedVoice = "default"
)

// ExtendedClient adds the Grok 4.20 video, voice and build endpoints to
// XAIClient. Each endpoint is an independent JSON POST.
type ExtendedClient struct {
	*XAIClient
}

// NewExtendedClient wraps an XAIClient.
func NewExtendedClient(base *XAIClient) *ExtendedClient {
	return &ExtendedClient{XAIClient: base}
}

func (c *ExtendedClient) Name() string { return "grok420" }

// ProcessVideo asks the model to analyze a video.
func (c *ExtendedClient) ProcessVideo(ctx context.Context, video []byte, prompt, credential, model string) (*domain.AgentResponse, error) {
	data, err := c.post(ctx, serviceVideo, "/video/analyze", credential, map[string]any{
		"model":      model,
		"video":      base64.StdEncoding.EncodeToString(video),
		"prompt":     prompt,
		"max_tokens": 4096,
	})
	if err != nil {
		return nil, err
	}
	return &domain.AgentResponse{
		AgentID:   "video-processor",
		Name:      "Video Processor",
		Color:     "#ff6b6b",
		Emoji:     "🎥",
		Content:   firstString(data, "analysis", "choices.0.message.content"),
		MediaKind: domain.MediaVideo,
		Metadata:  map[string]any{"videoProcessed": true, "duration": data.Get("duration").Value()},
	}, nil
}

// GenerateVideo requests a video rendered from a description.
func (c *ExtendedClient) GenerateVideo(ctx context.Context, description, quality, credential, model string) (*domain.AgentResponse, error) {
	if quality == "" {
		quality = defaultVideoQuality
	}
	data, err := c.post(ctx, serviceVideoGenerate, "/video/generate", credential, map[string]any{
		"model":       model,
		"description": description,
		"quality":     quality,
	})
	if err != nil {
		return nil, err
	}
	videoURL := data.Get("video_url").String()
	return &domain.AgentResponse{
		AgentID:   "video-generator",
		Name:      "Video Generator",
		Color:     "#4ecdc4",
		Emoji:     "🎬",
		Content:   "Generated video: " + videoURL,
		MediaKind: domain.MediaVideo,
		MediaURL:  videoURL,
		Metadata:  map[string]any{"generated": true, "duration": data.Get("duration").Value()},
	}, nil
}

// ProcessVoice asks the model to analyze an audio clip.
func (c *ExtendedClient) ProcessVoice(ctx context.Context, audio []byte, prompt, credential, model string) (*domain.AgentResponse, error) {
	data, err := c.post(ctx, serviceVoice, "/audio/analyze", credential, map[string]any{
		"model":      model,
		"audio":      base64.StdEncoding.EncodeToString(audio),
		"prompt":     prompt,
		"max_tokens": 2048,
	})
	if err != nil {
		return nil, err
	}
	return &domain.AgentResponse{
		AgentID:   "voice-processor",
		Name:      "Voice Processor",
		Color:     "#45b7d1",
		Emoji:     "🎤",
		Content:   firstString(data, "transcription", "choices.0.message.content"),
		MediaKind: domain.MediaAudio,
		Metadata:  map[string]any{"transcribed": true, "duration": data.Get("duration").Value()},
	}, nil
}

// GenerateVoice synthesizes speech for text in the given voice.
func (c *ExtendedClient) GenerateVoice(ctx context.Context, text, voice, credential, model string) (*domain.AgentResponse, error) {
	if voice == "" {
		voice = defaultGeneratedVoice
	}
	data, err := c.post(ctx, serviceVoiceGenerate, "/audio/generate", credential, map[string]any{
		"model":  model,
		"text":   text,
		"voice":  voice,
		"format": "mp3",
	})
	if err != nil {
		return nil, err
	}
	audioURL := data.Get("audio_url").String()
	return &domain.AgentResponse{
		AgentID:   "voice-generator",
		Name:      "Voice Generator",
		Color:     "#96ceb4",
		Emoji:     "🔊",
		Content:   "Generated voice: " + audioURL,
		MediaKind: domain.MediaAudio,
		MediaURL:  audioURL,
		Metadata:  map[string]any{"generated": true, "voice": voice, "duration": data.Get("duration").Value()},
	}, nil
}

// TranscribeAudio returns the plain-text transcription, or "" when the
// service returned none.
func (c *ExtendedClient) TranscribeAudio(ctx context.Context, audio []byte, credential, model string) (string, error) {
	data, err := c.post(ctx, serviceTranscription, "/audio/transcribe", credential, map[string]any{
		"model":  model,
		"audio":  base64.StdEncoding.EncodeToString(audio),
		"format": "text",
	})
	if err != nil {
		return "", err
	}
	return data.Get("transcription").String(), nil
}

// CreateBuild submits a build spec and returns the generated artifacts.
func (c *ExtendedClient) CreateBuild(ctx context.Context, spec domain.BuildSpec, credential, model string) (*domain.BuildResult, error) {
	data, err := c.post(ctx, serviceBuild, "/build/create", credential, map[string]any{
		"model":              model,
		"spec":               spec,
		"generate_artifacts": true,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.BuildResult{
		BuildID:   data.Get("build_id").String(),
		Status:    domain.BuildStatus(data.Get("status").String()),
		Artifacts: []domain.BuildArtifact{},
		Logs:      []string{},
		Metadata:  map[string]any{},
	}
	if err := decodeField(data, "artifacts", &result.Artifacts); err != nil {
		return nil, err
	}
	if err := decodeField(data, "logs", &result.Logs); err != nil {
		return nil, err
	}
	if err := decodeField(data, "metadata", &result.Metadata); err != nil {
		return nil, err
	}
	return result, nil
}

// ValidateBuild asks the service to check a previously created build.
func (c *ExtendedClient) ValidateBuild(ctx context.Context, buildID, credential, model string) (*domain.ValidationResult, error) {
	path := "/build/" + url.PathEscape(buildID) + "/validate"
	data, err := c.post(ctx, serviceBuildValidate, path, credential, map[string]any{
		"model": model,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.ValidationResult{
		Valid:    data.Get("valid").Bool(),
		Errors:   []domain.ValidationError{},
		Warnings: []domain.ValidationWarning{},
		Score:    data.Get("score").Float(),
	}
	if err := decodeField(data, "errors", &result.Errors); err != nil {
		return nil, err
	}
	if err := decodeField(data, "warnings", &result.Warnings); err != nil {
		return nil, err
	}
	return result, nil
}

// post sends body as JSON to baseURL+path and returns the parsed response.
func (c *ExtendedClient) post(ctx context.Context, service, path, credential string, body any) (gjson.Result, error) {
	if credential == "" {
		return gjson.Result{}, &MissingCredentialError{}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if aborted := asAborted(ctx, err); aborted != nil {
			return gjson.Result{}, aborted
		}
		return gjson.Result{}, fmt.Errorf("%s: request failed: %w", service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: failed to read response: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = gjson.GetBytes(respBody, "error").String()
		}
		return gjson.Result{}, &RemoteServiceError{Service: service, Code: resp.StatusCode, Message: msg}
	}

	if !gjson.ValidBytes(respBody) {
		return gjson.Result{}, fmt.Errorf("%s: response is not valid JSON", service)
	}
	return gjson.ParseBytes(respBody), nil
}

// firstString returns the first non-empty string among paths.
func firstString(data gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := data.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}

// decodeField unmarshals data[path] into dst when present and non-null.
func decodeField(data gjson.Result, path string, dst any) error {
	v := data.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	if err := json.Unmarshal([]byte(v.Raw), dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
