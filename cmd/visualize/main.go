// Command visualize runs the renovation pipeline from the shell: compile a
// prompt, analyze a photo, or render concepts to a local directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"renovateAi/internal/app"
	"renovateAi/internal/config"
	"renovateAi/internal/events"
	"renovateAi/internal/generation"
	"renovateAi/internal/logging"
	"renovateAi/internal/media"
	"renovateAi/internal/prompts"
	"renovateAi/internal/vision"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:           "visualize",
		Short:         "Render renovation concepts from a room photo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(compileCmd(), analyzeCmd(&g), generateCmd(&g))
	return cmd
}

// promptFlags are shared by compile and generate.
type promptFlags struct {
	room, style             string
	customRoom, customStyle string
	constraints, voice      string
	changes, preserve       []string
	materials               []string
	quick                   bool
}

func (p *promptFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.room, "room", "", "room type key, e.g. kitchen")
	f.StringVar(&p.style, "style", "", "catalog style key, e.g. farmhouse")
	f.StringVar(&p.customRoom, "custom-room", "", "free-text room type, wins over --room")
	f.StringVar(&p.customStyle, "custom-style", "", "free-text style, wins over --style")
	f.StringVar(&p.constraints, "constraints", "", "constraints that must be honoured")
	f.StringVar(&p.voice, "voice-summary", "", "consultation summary to include")
	f.StringSliceVar(&p.changes, "change", nil, "desired change (repeatable)")
	f.StringSliceVar(&p.preserve, "preserve", nil, "element to keep (repeatable)")
	f.StringSliceVar(&p.materials, "material", nil, "preferred material (repeatable)")
	f.BoolVar(&p.quick, "quick", false, "skip photo analysis details")
}

func (p *promptFlags) data() prompts.Data {
	d := prompts.Data{
		RoomType:       p.room,
		Style:          p.style,
		CustomRoomType: p.customRoom,
		CustomStyle:    p.customStyle,
		Constraints:    p.constraints,
		VoiceSummary:   p.voice,
	}
	if len(p.changes)+len(p.preserve)+len(p.materials) > 0 {
		d.Intent = &prompts.DesignIntent{Changes: p.changes, Preserve: p.preserve, Materials: p.materials}
	}
	return d
}

func compileCmd() *cobra.Command {
	var (
		p            promptFlags
		variation    int
		analysisPath string
	)
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the generation prompt for the given inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if variation < 0 {
				return errors.New("--variation must not be negative")
			}
			d := p.data()
			d.VariationIndex = variation
			if analysisPath != "" {
				raw, err := os.ReadFile(analysisPath)
				if err != nil {
					return err
				}
				var a vision.RoomAnalysis
				if err := json.Unmarshal(raw, &a); err != nil {
					return fmt.Errorf("parse analysis: %w", err)
				}
				d.Analysis = &a
			}
			prompt := prompts.Compile(d)
			if p.quick {
				prompt = prompts.CompileQuick(d)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return err
		},
	}
	p.register(cmd)
	cmd.Flags().IntVar(&variation, "variation", 0, "variation index")
	cmd.Flags().StringVar(&analysisPath, "analysis", "", "room analysis JSON file")
	return cmd
}

func analyzeCmd(g *globalFlags) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Describe the structure of a room photo as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := vision.ReadPhotoFile(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := g.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Analyzer == nil {
				return vision.Unavailable("vision.analyze", errors.New("no vision backend configured"))
			}

			analysis, err := a.Analyzer.Analyze(ctx, photo, vision.ParseRoomType(hint))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		},
	}
	cmd.Flags().StringVar(&hint, "room", "", "room type hint")
	return cmd
}

func generateCmd(g *globalFlags) *cobra.Command {
	var (
		p      promptFlags
		count  int
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "generate <photo>",
		Short: "Render renovation concepts into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := vision.ReadPhotoFile(args[0])
			if err != nil {
				return err
			}
			uploader, err := media.NewLocalUploader(outDir)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := g.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			d := p.data()
			if a.Analyzer != nil && !p.quick {
				analysis, err := a.Analyzer.Analyze(ctx, photo, vision.ParseRoomType(p.room))
				if err != nil {
					return err
				}
				if !analysis.Degraded {
					d.Analysis = &analysis
					if d.RoomType == "" {
						d.RoomType = string(analysis.RoomType)
					}
				}
			}

			progress := a.Events.Subscribe("")
			done := make(chan struct{})
			go func() {
				defer close(done)
				printProgress(cmd.ErrOrStderr(), progress)
			}()

			batch, err := a.Orchestrator.GenerateConcepts(ctx, generation.Request{
				SessionID: "cli",
				Photo:     photo,
				Prompt:    d,
				Quick:     p.quick,
			}, count)
			a.Events.Unsubscribe(progress)
			<-done
			if err != nil {
				return err
			}

			if batch.PrimaryErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: primary concept failed: %v\n", batch.PrimaryErr)
			}
			for _, c := range batch.Concepts {
				res, err := media.UploadConcept(ctx, uploader, "", c.VariationIndex, c.Image)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "concept %d: %s (attempts %d%s)\n",
					c.VariationIndex, res.Key, c.Attempts, scoreSuffix(c.ValidationScore))
			}
			return nil
		},
	}
	p.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", generation.MaxConcepts, "number of concepts (1-4)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "renders", "output directory")
	return cmd
}

func (g *globalFlags) build(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	// results go to stdout; console logs go to stderr
	cfg.Log.Format = "console"
	// the CLI keeps no sessions
	cfg.Storage.DatabaseURL, cfg.Storage.RedisAddr = "", ""

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger)
}

func printProgress(w io.Writer, ch <-chan events.Event) {
	for evt := range ch {
		line := fmt.Sprintf("[%s] variation %d", evt.Kind, evt.VariationIndex)
		if evt.Attempt > 0 {
			line += fmt.Sprintf(" attempt %d", evt.Attempt)
		}
		if evt.Score != nil {
			line += fmt.Sprintf(" score %.2f", *evt.Score)
		}
		if evt.Error != "" {
			line += ": " + evt.Error
		}
		switch evt.Kind {
		case events.KindBatchStarted:
			line = "[batch_started]"
		case events.KindBatchCompleted:
			line = fmt.Sprintf("[batch_completed] %d concepts", evt.Concepts)
		}
		fmt.Fprintln(w, strings.TrimSpace(line))
	}
}

func scoreSuffix(score *float64) string {
	if score == nil {
		return ""
	}
	return fmt.Sprintf(", score %.2f", *score)
}
