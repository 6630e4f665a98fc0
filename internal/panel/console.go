package panel

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/lunasherpa/luna/internal/domain"
)

// Console renders messages as colored terminal output. Each agent's header
// uses the agent's own color.
type Console struct {
	w       io.Writer
	noColor bool
	quiet   bool
}

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	NoColor bool
	// Quiet suppresses status messages.
	Quiet bool
}

// NewConsole creates a console panel writing to w.
func NewConsole(w io.Writer, opts ConsoleOptions) *Console {
	return &Console{w: w, noColor: opts.NoColor, quiet: opts.Quiet}
}

func (c *Console) paint(attrs ...color.Attribute) *color.Color {
	col := color.New(attrs...)
	if c.noColor {
		col.DisableColor()
	}
	return col
}

func (c *Console) agentColor(hex string) *color.Color {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return c.paint(color.Bold)
	}
	col := color.RGB(r, g, b).Add(color.Bold)
	if c.noColor {
		col.DisableColor()
	}
	return col
}

// Update renders one message.
func (c *Console) Update(kind string, data any) error {
	switch kind {
	case KindStatus:
		if c.quiet {
			return nil
		}
		msg, err := as[Status](kind, data)
		if err != nil {
			return err
		}
		_, err = c.paint(color.FgHiBlack).Fprintf(c.w, "› %s\n", msg.Message)
		return err
	case KindComplete:
		msg, err := as[Complete](kind, data)
		if err != nil {
			return err
		}
		return c.complete(msg)
	case KindError:
		msg, err := as[Error](kind, data)
		if err != nil {
			return err
		}
		_, err = c.paint(color.FgRed, color.Bold).Fprintf(c.w, "error: %s\n", msg.Message)
		return err
	case KindVideoResult, KindVoiceResult:
		msg, err := as[Media](kind, data)
		if err != nil {
			return err
		}
		return c.media(msg)
	case KindBuildResult:
		msg, err := as[Build](kind, data)
		if err != nil {
			return err
		}
		return c.build(msg)
	default:
		return fmt.Errorf("unknown panel message %q", kind)
	}
}

func (c *Console) complete(msg Complete) error {
	var b strings.Builder
	for _, r := range msg.Responses {
		b.WriteString(c.agentColor(r.Color).Sprintf("%s %s", r.Emoji, r.Name))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(r.Content))
		b.WriteString("\n\n")
	}
	b.WriteString(c.paint(color.FgCyan, color.Bold).Sprint("🌙 Luna's final answer"))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(msg.FinalAnswer))
	b.WriteString("\n")
	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) media(msg Media) error {
	if msg.Transcription != "" {
		if _, err := fmt.Fprintf(c.w, "%s\n%s\n", c.paint(color.Bold).Sprint("Transcription"), msg.Transcription); err != nil {
			return err
		}
	}
	if msg.Response == nil {
		return nil
	}
	r := msg.Response
	if _, err := fmt.Fprintf(c.w, "%s\n%s\n", c.agentColor(r.Color).Sprintf("%s %s", r.Emoji, r.Name), r.Content); err != nil {
		return err
	}
	if r.MediaURL != "" {
		_, err := c.paint(color.FgBlue, color.Underline).Fprintf(c.w, "%s\n", r.MediaURL)
		return err
	}
	return nil
}

func (c *Console) build(msg Build) error {
	if msg.Result == nil {
		return nil
	}
	res := msg.Result
	statusColor := c.paint(color.FgYellow)
	switch res.Status {
	case domain.BuildCompleted:
		statusColor = c.paint(color.FgGreen)
	case domain.BuildFailed:
		statusColor = c.paint(color.FgRed)
	}
	if res.Status == "" {
		fmt.Fprintf(c.w, "%s %s\n", c.paint(color.Bold).Sprint("Build"), res.BuildID)
	} else {
		fmt.Fprintf(c.w, "%s %s (%s)\n", c.paint(color.Bold).Sprint("Build"), res.BuildID, statusColor.Sprint(res.Status))
	}
	for _, a := range res.Artifacts {
		path := a.Path
		if path == "" {
			path = a.Name
		}
		fmt.Fprintf(c.w, "  [%s] %s\n", a.Kind, path)
	}
	for _, line := range res.Logs {
		c.paint(color.FgHiBlack).Fprintf(c.w, "  %s\n", line)
	}

	if v := msg.Validation; v != nil {
		verdict := c.paint(color.FgGreen).Sprint("valid")
		if !v.Valid {
			verdict = c.paint(color.FgRed).Sprint("invalid")
		}
		fmt.Fprintf(c.w, "Validation: %s (score %.2f)\n", verdict, v.Score)
		for _, e := range v.Errors {
			fmt.Fprintf(c.w, "  error [%s] %s%s\n", e.Kind, e.Message, position(e.Line, e.Column))
		}
		for _, w := range v.Warnings {
			fmt.Fprintf(c.w, "  warning [%s] %s\n", w.Kind, w.Message)
			if w.Suggestion != "" {
				fmt.Fprintf(c.w, "    suggestion: %s\n", w.Suggestion)
			}
		}
	}
	return nil
}

func position(line, col int) string {
	switch {
	case line > 0 && col > 0:
		return fmt.Sprintf(" (line %d, col %d)", line, col)
	case line > 0:
		return fmt.Sprintf(" (line %d)", line)
	default:
		return ""
	}
}

// as converts a payload to T, accepting both values and pointers.
func as[T any](kind string, data any) (T, error) {
	switch v := data.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("panel message %q: unexpected payload %T", kind, data)
}

// parseHex parses "#rrggbb".
func parseHex(s string) (r, g, b int, ok bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
