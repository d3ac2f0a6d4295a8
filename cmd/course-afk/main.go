package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/checkpoint"
	"github.com/jaykwok/course-afk/internal/collect"
	appI18n "github.com/jaykwok/course-afk/internal/i18n"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/oracle"
	"github.com/jaykwok/course-afk/internal/quiz"
	"github.com/jaykwok/course-afk/internal/runner"
	"github.com/jaykwok/course-afk/internal/session"
	"github.com/jaykwok/course-afk/internal/traverse"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "course-afk",
		Short: "Auto-completes required e-learning courses on the zhixueyun portal",
	}

	run := runCmd()
	root.AddCommand(run, examCmd(), collectCmd())

	// Make "run" the default when no subcommand is given.
	root.RunE = run.RunE

	// Register run flags on root so bare `course-afk --tasks ...` still works.
	root.Flags().AddFlagSet(run.Flags())

	return root
}

func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("cookies", "cookies.json", "Cookie jar written by a prior interactive login")
	f.Bool("headless", true, "Run the browser without a visible window")
	f.Bool("mute-audio", true, "Mute browser audio")
	f.String("chrome-path", "", "Chrome binary to launch (empty = auto-detect)")
	f.Duration("login-timeout", 90*time.Second, "How long to wait for the cookie session to be accepted")
	f.StringP("lang", "l", "en", "Report language (en, zh)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func storeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "file", "Checkpoint backend (file, sqlite)")
	f.String("queue-dir", "checkpoints", "Directory for file-backed checkpoint queues")
	f.String("db", "course-afk.db", "SQLite database path for the sqlite backend")
}

func oracleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "https://api.deepseek.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM (or set COURSEAFK_LLM_KEY)")
	f.String("llm-model", "deepseek-chat", "Model for the first answering attempt")
	f.String("llm-reasoning-model", "deepseek-reasoner", "Model for the retry after a failed attempt")
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Work through the task list, resuming from the last checkpoint",
		RunE:  runRun,
	}
	f := cmd.Flags()
	f.StringP("tasks", "f", "tasks.txt", "Task list with one portal URL per line")
	f.Int("max-passes", 3, "Maximum retry passes over failed tasks")
	f.Duration("document-dwell", 10*time.Second, "How long to keep a document chapter open")
	f.Duration("sync-grace", 5*time.Minute, "How long to wait for the server to credit a finished chapter")
	commonFlags(cmd)
	storeFlags(cmd)
	oracleFlags(cmd)
	return cmd
}

func examCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam [URL]",
		Short: "Answer the queued exams, or one standalone exam URL",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExam,
	}
	commonFlags(cmd)
	storeFlags(cmd)
	oracleFlags(cmd)
	return cmd
}

func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect URL",
		Short: "Harvest portal links from a page into a task list",
		Args:  cobra.ExactArgs(1),
		RunE:  runCollect,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "tasks.txt", "Task list to write")
	commonFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COURSEAFK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("course-afk")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/course-afk")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// buildStore picks the checkpoint backend.
func buildStore(v *viper.Viper) (checkpoint.Store, func(), error) {
	switch strings.ToLower(v.GetString("store")) {
	case "sqlite":
		s, err := checkpoint.NewSQLiteStore(v.GetString("db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open checkpoint database: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "file":
		s, err := checkpoint.NewFileStore(v.GetString("queue-dir"))
		if err != nil {
			return nil, nil, fmt.Errorf("open checkpoint directory: %w", err)
		}
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", v.GetString("store"))
}

// openPortal launches the browser, injects the cookie jar, and waits for
// the authenticated landing page.
func openPortal(ctx context.Context, v *viper.Viper) (*browser.Session, browser.Document, error) {
	cookies, err := session.LoadCookies(v.GetString("cookies"))
	if err != nil {
		return nil, nil, err
	}

	bs, err := browser.NewSession(ctx, browser.Options{
		Headless:  v.GetBool("headless"),
		MuteAudio: v.GetBool("mute-audio"),
		ExecPath:  v.GetString("chrome-path"),
		Logger:    slog.Default(),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := bs.SetCookies(ctx, cookies); err != nil {
		bs.Close()
		return nil, nil, err
	}
	doc, err := bs.NewDocument(ctx)
	if err != nil {
		bs.Close()
		return nil, nil, err
	}
	if err := session.Bootstrap(ctx, slog.Default(), doc, v.GetDuration("login-timeout")); err != nil {
		bs.Close()
		return nil, nil, err
	}
	return bs, doc, nil
}

func buildOracle(ctx context.Context, v *viper.Viper) (*oracle.Client, error) {
	client := oracle.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetString("llm-reasoning-model"),
		slog.Default(),
	)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	return client, nil
}

func i18nContext(ctx context.Context, lang string) (context.Context, error) {
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	return appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang)), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signalContext()
	defer stop()
	ctx, err := i18nContext(ctx, v.GetString("lang"))
	if err != nil {
		return err
	}

	store, closeStore, err := buildStore(v)
	if err != nil {
		return err
	}
	defer closeStore()

	llm, err := buildOracle(ctx, v)
	if err != nil {
		return err
	}

	bs, doc, err := openPortal(ctx, v)
	if err != nil {
		return err
	}
	defer bs.Close()

	quizEng := quiz.NewEngine(llm, slog.Default())
	trav := traverse.NewEngine(store, quizEng, slog.Default(), traverse.Config{
		DocumentDwell: v.GetDuration("document-dwell"),
		SyncGrace:     v.GetDuration("sync-grace"),
	})
	run := runner.New(store, trav, quizEng, slog.Default(), runner.Config{
		InputPath: v.GetString("tasks"),
	})

	maxPasses := v.GetInt("max-passes")
	var out model.RunOutcome
	for pass := 1; pass <= maxPasses; pass++ {
		slog.Info("starting pass", "pass", pass, "max", maxPasses)
		out, err = run.Run(ctx, doc)
		if err != nil {
			return err
		}
		if pass == 1 && out.Processed == 0 {
			fmt.Println(appI18n.T(ctx, "NothingToDo"))
			break
		}
		fmt.Println(appI18n.Td(ctx, "RunSummary", map[string]any{
			"Processed": out.Processed,
			"Failed":    out.Failed,
		}))
		if !out.HadFailures {
			break
		}
	}
	if !out.HadFailures {
		fmt.Println(appI18n.T(ctx, "RunClean"))
	}

	return reportQueues(ctx, store)
}

// reportQueues prints every queue that still holds work for the operator.
func reportQueues(ctx context.Context, store checkpoint.Store) error {
	for _, q := range checkpoint.Queues() {
		n, err := store.Len(q)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		fmt.Println(appI18n.Tn(ctx, "QueueStatus", n, map[string]any{
			"Queue": q.String(),
		}))
	}
	return nil
}

func runExam(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if len(args) == 1 {
		if kind, err := model.ParseResourceURL(args[0]); err != nil {
			return err
		} else if kind != model.ResourceExam {
			return fmt.Errorf("not an exam link: %s", args[0])
		}
	}

	ctx, stop := signalContext()
	defer stop()
	ctx, err := i18nContext(ctx, v.GetString("lang"))
	if err != nil {
		return err
	}

	store, closeStore, err := buildStore(v)
	if err != nil {
		return err
	}
	defer closeStore()

	llm, err := buildOracle(ctx, v)
	if err != nil {
		return err
	}

	bs, doc, err := openPortal(ctx, v)
	if err != nil {
		return err
	}
	defer bs.Close()

	quizEng := quiz.NewEngine(llm, slog.Default())

	if len(args) == 1 {
		return answerOneExam(ctx, store, quizEng, doc, args[0])
	}

	// No URL given: work through everything the traversal queued.
	trav := traverse.NewEngine(store, quizEng, slog.Default(), traverse.Config{})
	run := runner.New(store, trav, quizEng, slog.Default(), runner.Config{})
	out, err := run.RunExamQueues(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Println(appI18n.Td(ctx, "RunSummary", map[string]any{
		"Processed": out.Processed,
		"Failed":    out.Failed,
	}))
	return reportQueues(ctx, store)
}

func answerOneExam(ctx context.Context, store checkpoint.Store, eng *quiz.Engine, doc browser.Document, url string) error {
	if err := doc.Navigate(ctx, url); err != nil {
		return err
	}
	if err := doc.WaitLoad(ctx); err != nil {
		return err
	}

	verdict, err := eng.RunExam(ctx, doc, false)
	if err != nil {
		return err
	}
	switch verdict {
	case quiz.VerdictManual:
		if err := store.Enqueue(checkpoint.QueueManualExam, url); err != nil {
			return err
		}
		fmt.Println(appI18n.Td(ctx, "ManualExamQueued", map[string]any{"URL": url}))
	case quiz.VerdictDeferred:
		slog.Warn("exam has an attempt in progress, try again later", "url", url)
	}
	return nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signalContext()
	defer stop()

	bs, doc, err := openPortal(ctx, v)
	if err != nil {
		return err
	}
	defer bs.Close()

	urls, err := collect.FromPage(ctx, doc, args[0])
	if err != nil {
		return err
	}
	output := v.GetString("output")
	if err := collect.WriteList(output, urls); err != nil {
		return err
	}
	slog.Info("task list written", "file", output, "links", len(urls))
	return nil
}
