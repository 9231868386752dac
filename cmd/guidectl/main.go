// Package main provides guidectl, a terminal client for the guide chat engine.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashureev/cosmic-guide/internal/bootstrap"
	"github.com/ashureev/cosmic-guide/internal/config"
	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/render"
)

var (
	version = "0.1.0" // set at build time
	timeNow = time.Now
)

var (
	logLevel string
	guide    string
	width    int
	style    string
	name     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guidectl",
	Short: "Talk to the cosmic guide from a terminal",
	Long: `guidectl runs the guide conversation engine locally against an in-memory
session. It reads the same environment variables as the server.`,
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

var topicCmd = &cobra.Command{
	Use:   "topic <phrase...>",
	Short: "Print the topic detected for a phrase",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTopic,
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the command centre entries",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, c := range conversation.Commands() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", c.Name, c.Label)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "guidectl v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Set log level (debug|info|warn|error)")
	chatCmd.Flags().StringVar(&guide, "guide", "", "Guide persona (vedic_guru|cosmic_strategist|mystic_healer)")
	chatCmd.Flags().StringVar(&name, "name", "", "Your name for the welcome reading")
	chatCmd.Flags().IntVar(&width, "width", 80, "Word wrap width")
	chatCmd.Flags().StringVar(&style, "style", "", "Markdown style (dark|light|notty); empty detects the terminal")

	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("DEFAULT_GUIDE", chatCmd.Flags().Lookup("guide")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding guide flag: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(chatCmd, topicCmd, commandsCmd, versionCmd)
	cobra.OnInitialize(initLogger)
}

// initLogger routes slog through charmbracelet/log for readable terminal output.
func initLogger() {
	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = log.WarnLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: false,
		Prefix:          "guidectl",
	})
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g := viper.GetString("DEFAULT_GUIDE"); g != "" {
		cfg.DefaultGuide = g
	}
	return cfg, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()
	engine, provider, err := bootstrap.Engine(cfg, logger)
	if err != nil {
		return err
	}
	renderer, err := render.New(render.Options{Width: width, Style: style})
	if err != nil {
		return err
	}

	r := newREPL(cmd.Context(), engine, renderer, bootstrap.DefaultGuide(cfg, logger))
	logger.Info("Chat session started", "provider", provider.Name(), "guide", r.session.Guide.String())

	sh := ishell.New()
	sh.SetPrompt("you> ")
	sh.Println(fmt.Sprintf("guidectl v%s - chatting with %s", version, r.session.Guide.Name()))
	sh.Println("Commands: guide <name>, cmd <command>, status, transcript, reset, exit")
	if name != "" {
		sh.Println(r.welcome(domain.Profile{Name: name}))
	}

	sh.AddCmd(&ishell.Cmd{
		Name: "guide",
		Help: "switch guide persona",
		Func: func(c *ishell.Context) { c.Println(result(r.selectGuide(strings.Join(c.Args, " ")))) },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "cmd",
		Help: "run a command centre analysis",
		Func: func(c *ishell.Context) { c.Println(result(r.command(strings.Join(c.Args, " ")))) },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show topic and phase",
		Func: func(c *ishell.Context) { c.Println(r.status()) },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "transcript",
		Help: "print the whole conversation",
		Func: func(c *ishell.Context) { c.Println(r.transcript()) },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "reset",
		Help: "start a fresh conversation",
		Func: func(c *ishell.Context) { c.Println(r.reset()) },
	})
	sh.NotFound(func(c *ishell.Context) {
		text := strings.TrimSpace(strings.Join(c.RawArgs, " "))
		if text == "" {
			return
		}
		c.Println(result(r.say(text)))
	})

	sh.Run()
	return nil
}

func result(out string, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return out
}

func runTopic(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	kw := conversation.DefaultKeywords()
	if cfg.Conversation.TriggersFile != "" {
		if kw, err = conversation.LoadKeywords(cfg.Conversation.TriggersFile); err != nil {
			return err
		}
	}
	printTopic(cmd.OutOrStdout(), conversation.NewTopicDetector(kw), strings.Join(args, " "))
	return nil
}
