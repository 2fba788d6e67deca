package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/lappka/lappka/internal/categorize"
	"github.com/lappka/lappka/internal/expert"
	"github.com/lappka/lappka/internal/handler"
	appI18n "github.com/lappka/lappka/internal/i18n"
	"github.com/lappka/lappka/internal/llm"
	"github.com/lappka/lappka/internal/llm/prompts"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/modules"
	"github.com/lappka/lappka/internal/moodle"
	"github.com/lappka/lappka/internal/report"
	"github.com/lappka/lappka/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lappka",
		Short: "Learning analytics dashboard for Moodle quiz statistics",
	}

	serve := serveCmd()
	root.AddCommand(serve, analyzeCmd(), categorizeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `lappka --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP dashboard",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "lappka.db", "SQLite database path")
	f.StringP("lang", "l", "ru", "UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /lappka)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set LAPPKA_ADMIN_PASSWORD)")
	f.String("modules", "", "Module table YAML (empty = built-in table)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "", "LLM model name (empty disables commentary)")
	f.String("advice-variant", string(prompts.VariantBrief), "Commentary prompt variant (brief, detailed)")
	f.Int("max-upload-mb", 20, "Maximum upload size in megabytes")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <statistics file>",
		Short: "Analyse an HTML or CSV statistics export and print the report",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	f := cmd.Flags()
	f.StringP("format", "f", "json", "Report format (json, yaml)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Sort a GIFT question bank into categories by quiz statistics",
		RunE:  runCategorize,
	}
	f := cmd.Flags()
	f.String("stats", "", "Statistics export (HTML or CSV, required)")
	f.String("gift", "", "GIFT question bank (required)")
	f.Float64("easy-threshold", 70, "Facility index from which a question counts as easy")
	f.Float64("min-similarity", 0.9, "Minimum text similarity for a match")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("stats")
	_ = cmd.MarkFlagRequired("gift")

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

	v.SetEnvPrefix("LAPPKA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lappka")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lappka")
	v.AddConfigPath("/etc/lappka")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	mods, err := loadModules(v.GetString("modules"))
	if err != nil {
		return err
	}

	if err := prompts.Load(prompts.FS); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	adviceVariant := strings.ToLower(strings.TrimSpace(v.GetString("advice-variant")))
	if !prompts.IsValidVariant(adviceVariant) {
		slog.Warn("invalid advice-variant, using brief", "variant", adviceVariant)
		adviceVariant = string(prompts.VariantBrief)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if llmClient.Enabled() {
		if err := llmClient.Ping(context.Background()); err != nil {
			slog.Warn("LLM health check failed, commentary may be unavailable", "url", v.GetString("llm-url"), "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		}
	} else {
		slog.Info("no LLM model configured, commentary disabled")
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	appCfg := model.AppConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		MaxUploadMB:   v.GetInt("max-upload-mb"),
		AdviceVariant: adviceVariant,
		Lang:          lang,
	}

	h, err := handler.New(db, llmClient, mods, appCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	var enabled []string
	for _, m := range mods.Enabled() {
		enabled = append(enabled, m.ID)
	}
	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"modules", strings.Join(enabled, ","),
		"model", v.GetString("llm-model"),
		"advice_variant", adviceVariant,
		"max_upload_mb", appCfg.MaxUploadMB,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func loadModules(path string) (*modules.Table, error) {
	if path == "" {
		return modules.Default(), nil
	}
	tbl, err := modules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load module table: %w", err)
	}
	slog.Info("loaded module table", "path", path, "enabled", len(tbl.Enabled()))
	return tbl, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read statistics: %w", err)
	}
	ds, err := moodle.LoadDataset(args[0], data)
	if err != nil {
		return err
	}
	slog.Info("parsed statistics", "file", ds.Filename, "questions", len(model.Subquestions(ds.Questions)))

	out, err := encodeReport(report.Build(ds, expert.DefaultTargets()), v.GetString("format"))
	if err != nil {
		return err
	}
	return writeOutput(v.GetString("output"), out)
}

func encodeReport(rep report.Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(rep)
		if err != nil {
			return nil, fmt.Errorf("marshal YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown format %q: use json or yaml", format)
	}
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	statsPath, giftPath := v.GetString("stats"), v.GetString("gift")
	statsData, err := os.ReadFile(statsPath)
	if err != nil {
		return fmt.Errorf("read statistics: %w", err)
	}
	ds, err := moodle.LoadDataset(statsPath, statsData)
	if err != nil {
		return err
	}
	giftData, err := os.ReadFile(giftPath)
	if err != nil {
		return fmt.Errorf("read question bank: %w", err)
	}
	bank, err := moodle.LoadBank(giftPath, giftData)
	if err != nil {
		return err
	}

	res := categorize.Categorize(bank.Questions, ds.Questions, categorize.Options{
		EasyThreshold: v.GetFloat64("easy-threshold"),
		MinSimilarity: v.GetFloat64("min-similarity"),
	})
	for _, g := range res.Groups {
		slog.Info("category", "name", g.Category, "questions", len(g.Questions))
	}
	if len(res.Unmatched) > 0 {
		slog.Warn("questions not found in statistics", "count", len(res.Unmatched), "names", strings.Join(res.Unmatched, "; "))
	}
	return writeOutput(v.GetString("output"), []byte(categorize.GenerateGIFT(bank.BaseCategory, res)))
}

func writeOutput(outPath string, data []byte) error {
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or LAPPKA_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
