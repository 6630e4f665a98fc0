package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/panel"
)

var (
	videoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
	audioExtensions = []string{".mp3", ".wav", ".m4a", ".flac"}
)

// mediaFlags are shared by every media and build command.
type mediaFlags struct {
	model   string
	jsonOut bool
}

func (f *mediaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "override the configured model")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print panel messages as JSON lines")
}

// session is the state a media or build command runs with.
type session struct {
	cfg        config.Config
	client     llm.Client
	credential string
	model      string
	panel      panel.Panel
	jsonOut    bool
}

// openSession checks that the feature is enabled and a key is configured,
// then selects the backend.
func openSession(cmd *cobra.Command, f mediaFlags, feature string, enabled func(config.FeaturesConfig) bool) (*session, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	if !enabled(cfg.Features) {
		return nil, fmt.Errorf("%s is disabled; enable it with `luna config set features.%sEnabled true`", feature, feature)
	}
	credential, err := requireCredential()
	if err != nil {
		return nil, err
	}
	client, err := llm.NewRegistryFromConfig(cfg, nil, log).Select(credential, cfg.Features.ExtendedEnabled())
	if err != nil {
		return nil, err
	}
	model := f.model
	if model == "" {
		model = cfg.Model
	}
	return &session{
		cfg:        cfg,
		client:     client,
		credential: credential,
		model:      model,
		panel:      openPanel(cmd, f.jsonOut, false),
		jsonOut:    f.jsonOut,
	}, nil
}

// fail reports err on a JSON panel and returns it.
func (s *session) fail(err error) error {
	if s.jsonOut {
		s.panel.Update(panel.KindError, panel.Error{Message: err.Error()})
	}
	return err
}

func (s *session) status(message string) {
	s.panel.Update(panel.KindStatus, panel.Status{Message: message})
}

func (s *session) unsupported(capability string) error {
	return fmt.Errorf("the %s backend does not support %s; set features.grok420Enabled to true", s.client.Name(), capability)
}

func (s *session) mediaDone(ctx context.Context, event, mediaType string) {
	hookMgr.Emit(ctx, hooks.EventMediaProcessed, map[string]any{
		"event":     event,
		"mediaType": mediaType,
		"command":   command,
		"model":     s.model,
	})
}

// readMedia loads a media file after checking its extension.
func readMedia(path, kind string, allowed []string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(allowed, ext) {
		return nil, fmt.Errorf("%s: unsupported %s file type (want one of %s)", path, kind, strings.Join(allowed, ", "))
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", kind, err)
	}
	return data, nil
}

func newVideoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Analyze or generate video with the extended xAI client",
	}
	cmd.AddCommand(newVideoAnalyzeCmd())
	cmd.AddCommand(newVideoGenerateCmd())
	return cmd
}

func videoEnabled(f config.FeaturesConfig) bool { return f.VideoEnabled }

func newVideoAnalyzeCmd() *cobra.Command {
	var (
		flags  mediaFlags
		prompt string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a video file (mp4, avi, mov, mkv)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "video", videoEnabled)
			if err != nil {
				return err
			}
			vc, ok := s.client.(llm.VideoClient)
			if !ok {
				return s.unsupported("video")
			}
			data, err := readMedia(args[0], "video", videoExtensions)
			if err != nil {
				return err
			}

			s.status("Analyzing video content...")
			resp, err := vc.ProcessVideo(cmd.Context(), data, prompt, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			s.mediaDone(cmd.Context(), "processed", "video")
			return s.panel.Update(panel.KindVideoResult, panel.Media{Response: resp})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "Analyze the content of this video", "what to look for in the video")
	return cmd
}

func newVideoGenerateCmd() *cobra.Command {
	var (
		flags   mediaFlags
		quality string
	)
	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a video from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "video", videoEnabled)
			if err != nil {
				return err
			}
			vc, ok := s.client.(llm.VideoClient)
			if !ok {
				return s.unsupported("video")
			}
			if quality == "" {
				quality = s.cfg.Features.VideoQuality
			}

			s.status("Creating video from description...")
			resp, err := vc.GenerateVideo(cmd.Context(), strings.Join(args, " "), quality, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			s.mediaDone(cmd.Context(), "generated", "video")
			return s.panel.Update(panel.KindVideoResult, panel.Media{Response: resp})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&quality, "quality", "", "low, medium or high (default from features.videoQuality)")
	return cmd
}

func newVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Analyze, transcribe or synthesize audio with the extended xAI client",
	}
	cmd.AddCommand(newVoiceAnalyzeCmd())
	cmd.AddCommand(newVoiceTranscribeCmd())
	cmd.AddCommand(newVoiceGenerateCmd())
	return cmd
}

func voiceEnabled(f config.FeaturesConfig) bool { return f.VoiceEnabled }

func newVoiceAnalyzeCmd() *cobra.Command {
	var (
		flags  mediaFlags
		prompt string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Transcribe and analyze an audio file (mp3, wav, m4a, flac)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "voice", voiceEnabled)
			if err != nil {
				return err
			}
			vc, ok := s.client.(llm.VoiceClient)
			if !ok {
				return s.unsupported("voice")
			}
			data, err := readMedia(args[0], "audio", audioExtensions)
			if err != nil {
				return err
			}

			s.status("Transcribing and analyzing audio...")
			transcription, err := vc.TranscribeAudio(cmd.Context(), data, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			analysis, err := vc.ProcessVoice(cmd.Context(), data, prompt, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			s.mediaDone(cmd.Context(), "processed", "voice")
			return s.panel.Update(panel.KindVoiceResult, panel.Media{Response: analysis, Transcription: transcription})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "Analyze this audio content", "what to look for in the audio")
	return cmd
}

func newVoiceTranscribeCmd() *cobra.Command {
	var flags mediaFlags
	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "voice", voiceEnabled)
			if err != nil {
				return err
			}
			vc, ok := s.client.(llm.VoiceClient)
			if !ok {
				return s.unsupported("voice")
			}
			data, err := readMedia(args[0], "audio", audioExtensions)
			if err != nil {
				return err
			}

			s.status("Transcribing audio...")
			transcription, err := vc.TranscribeAudio(cmd.Context(), data, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			s.mediaDone(cmd.Context(), "transcribed", "voice")
			return s.panel.Update(panel.KindVoiceResult, panel.Media{Transcription: transcription})
		},
	}
	flags.register(cmd)
	return cmd
}

func newVoiceGenerateCmd() *cobra.Command {
	var (
		flags mediaFlags
		voice string
	)
	cmd := &cobra.Command{
		Use:   "generate <text>",
		Short: "Convert text to speech",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "voice", voiceEnabled)
			if err != nil {
				return err
			}
			vc, ok := s.client.(llm.VoiceClient)
			if !ok {
				return s.unsupported("voice")
			}
			if voice == "" {
				voice = s.cfg.Features.PreferredVoice
			}

			s.status("Converting text to speech...")
			resp, err := vc.GenerateVoice(cmd.Context(), strings.Join(args, " "), voice, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			s.mediaDone(cmd.Context(), "generated", "voice")
			return s.panel.Update(panel.KindVoiceResult, panel.Media{Response: resp})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&voice, "voice", "", "voice to use (default from features.preferredVoice)")
	return cmd
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create and validate software builds with the extended xAI client",
	}
	cmd.AddCommand(newBuildCreateCmd())
	cmd.AddCommand(newBuildValidateCmd())
	return cmd
}

func buildEnabled(f config.FeaturesConfig) bool { return f.BuildEnabled }

func newBuildCreateCmd() *cobra.Command {
	var (
		flags        mediaFlags
		name         string
		architecture string
		technologies []string
		requirements []string
		constraints  []string
		noValidate   bool
	)
	cmd := &cobra.Command{
		Use:   "create <description>",
		Short: "Generate a software build from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "build", buildEnabled)
			if err != nil {
				return err
			}
			bc, ok := s.client.(llm.BuildClient)
			if !ok {
				return s.unsupported("builds")
			}
			if name == "" {
				name = fmt.Sprintf("Build-%d", time.Now().UnixMilli())
			}
			spec := domain.BuildSpec{
				Name:         name,
				Description:  strings.Join(args, " "),
				Requirements: requirements,
				Architecture: architecture,
				Technologies: technologies,
				Constraints:  constraints,
			}

			s.status("Generating software build...")
			result, err := bc.CreateBuild(cmd.Context(), spec, s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}

			var validation *domain.ValidationResult
			if !noValidate {
				s.status("Validating build...")
				validation, err = bc.ValidateBuild(cmd.Context(), result.BuildID, s.credential, s.model)
				if err != nil {
					return s.fail(err)
				}
			}

			data := map[string]any{
				"buildId":   result.BuildID,
				"status":    string(result.Status),
				"artifacts": len(result.Artifacts),
				"command":   command,
			}
			if validation != nil {
				data["valid"] = validation.Valid
			}
			hookMgr.Emit(cmd.Context(), hooks.EventBuildCreated, data)
			return s.panel.Update(panel.KindBuildResult, panel.Build{Result: result, Validation: validation})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "build name (default Build-<unix millis>)")
	cmd.Flags().StringVar(&architecture, "architecture", "microservices", "target architecture")
	cmd.Flags().StringSliceVar(&technologies, "tech", []string{"typescript", "node.js", "express"}, "technologies to use")
	cmd.Flags().StringSliceVar(&requirements, "requirement", []string{"functional", "scalable", "maintainable"}, "build requirements")
	cmd.Flags().StringSliceVar(&constraints, "constraint", []string{"modern standards", "security best practices"}, "build constraints")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip validating the generated build")
	return cmd
}

func newBuildValidateCmd() *cobra.Command {
	var flags mediaFlags
	cmd := &cobra.Command{
		Use:   "validate <build-id>",
		Short: "Validate a previously created build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, "build", buildEnabled)
			if err != nil {
				return err
			}
			bc, ok := s.client.(llm.BuildClient)
			if !ok {
				return s.unsupported("builds")
			}

			s.status("Validating build...")
			validation, err := bc.ValidateBuild(cmd.Context(), args[0], s.credential, s.model)
			if err != nil {
				return s.fail(err)
			}
			return s.panel.Update(panel.KindBuildResult, panel.Build{
				Result:     &domain.BuildResult{BuildID: args[0]},
				Validation: validation,
			})
		},
	}
	flags.register(cmd)
	return cmd
}
