package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/teachassist/internal/credentials"
	"github.com/pavelanni/teachassist/internal/evaluation"
	"github.com/pavelanni/teachassist/internal/handler"
	appI18n "github.com/pavelanni/teachassist/internal/i18n"
	"github.com/pavelanni/teachassist/internal/llm"
	"github.com/pavelanni/teachassist/internal/metrics"
	"github.com/pavelanni/teachassist/internal/model"
	"github.com/pavelanni/teachassist/internal/objstore"
	"github.com/pavelanni/teachassist/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "teachassist",
		Short: "AI grading and feedback for teachers",
	}

	serve := serveCmd()
	root.AddCommand(serve, keysCmd(), evaluateCmd(), historyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `teachassist --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addDBFlag(f *pflag.FlagSet) {
	f.String("db", "teachassist.db", "SQLite database path")
}

func addLLMFlags(f *pflag.FlagSet) {
	f.String("llm-provider", llm.ProviderGemini, "Generation service (gemini, openai)")
	f.String("llm-url", "", "Generation service base URL (empty = provider default)")
	f.String("llm-model", "", "Model name (empty = provider default)")
	f.Duration("llm-timeout", 2*time.Minute, "Timeout for one completion request")
	f.String("gen-key", "", "Generation API key to store at startup (or set TEACHASSIST_GEN_KEY)")
}

func addStorageFlags(f *pflag.FlagSet) {
	f.String("storage-backend", objstore.BackendMemory, "Object storage backend (memory, gcs, minio)")
	f.String("bucket", "teachassist-assignments", "Bucket name")
	f.String("gcs-credentials", "", "Service account JSON file for GCS (empty = use the storage key as API key)")
	f.String("minio-endpoint", "localhost:9000", "MinIO/S3 endpoint")
	f.String("minio-access-key", "", "MinIO/S3 access key (the storage key is the secret)")
	f.Bool("minio-ssl", false, "Use TLS for MinIO/S3")
	f.String("storage-key", "", "Storage API key to store at startup (or set TEACHASSIST_STORAGE_KEY)")
	f.Duration("persist-timeout", time.Minute, "Timeout for writing one evaluation record")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addDBFlag(f)
	addLLMFlags(f)
	addStorageFlags(f)
	f.StringP("lang", "l", "en", "Default language for messages (en, ru)")
	f.Int64("max-upload", 10<<20, "Maximum assignment upload size in bytes")
	f.String("admin-password", "", "Admin password; enables basic auth on /api (or set TEACHASSIST_ADMIN_PASSWORD)")
	addLogFlags(f)
	return cmd
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the generation and storage API keys",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Store API keys; only the given keys are changed",
		RunE:  runKeysSet,
	}
	f := set.Flags()
	addDBFlag(f)
	f.String("gen-key", "", "Generation API key")
	f.String("storage-key", "", "Storage API key")
	addLogFlags(f)

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored API keys (masked unless --reveal)",
		RunE:  runKeysShow,
	}
	f = show.Flags()
	addDBFlag(f)
	f.Bool("reveal", false, "Print keys in full")
	addLogFlags(f)

	cmd.AddCommand(set, show)
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one student's responses from a JSON file",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "-", "Evaluation request JSON (- for stdin)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addDBFlag(f)
	addLLMFlags(f)
	addStorageFlags(f)
	addLogFlags(f)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a student's stored evaluations as JSON",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("student", "", "Student ID (required)")
	f.String("assessment", "", "Print only this assessment ID")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addDBFlag(f)
	addStorageFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("student")

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

	v.SetEnvPrefix("TEACHASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("teachassist")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/teachassist")
	v.AddConfigPath("/etc/teachassist")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// services is the evaluation stack shared by serve, evaluate and history.
type services struct {
	db        *store.Store
	keys      *credentials.Provider
	files     *objstore.Client
	evaluator *evaluation.Service
	validate  *validator.Validate
}

func (s *services) Close() {
	if err := s.files.Close(); err != nil {
		slog.Warn("error closing storage", "error", err)
	}
	if err := s.db.Close(); err != nil {
		slog.Warn("error closing database", "error", err)
	}
}

func openServices(v *viper.Viper) (*services, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	keys := credentials.NewProvider(db)
	if err := seedKeys(keys, v.GetString("gen-key"), v.GetString("storage-key")); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed API keys: %w", err)
	}

	opener, err := objstore.NewOpener(objstore.Settings{
		Backend:        v.GetString("storage-backend"),
		Bucket:         v.GetString("bucket"),
		GCSCredentials: v.GetString("gcs-credentials"),
		MinIO: objstore.MinIOSettings{
			Endpoint:  v.GetString("minio-endpoint"),
			AccessKey: v.GetString("minio-access-key"),
			UseSSL:    v.GetBool("minio-ssl"),
		},
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	files := objstore.NewClient(keys, opener)

	// history has no LLM flags; its completer is never called.
	completer, err := llm.New(keys, llm.Settings{
		Provider: v.GetString("llm-provider"),
		BaseURL:  v.GetString("llm-url"),
		Model:    v.GetString("llm-model"),
		Timeout:  v.GetDuration("llm-timeout"),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	validate := validator.New()
	return &services{
		db:        db,
		keys:      keys,
		files:     files,
		evaluator: evaluation.NewService(completer, keys, files, validate, v.GetDuration("persist-timeout")),
		validate:  validate,
	}, nil
}

// seedKeys stores the keys given on the command line or in the environment.
// Empty values leave the stored keys untouched.
func seedKeys(p *credentials.Provider, genKey, storageKey string) error {
	var u credentials.Update
	if genKey != "" {
		u.GenKey = &genKey
	}
	if storageKey != "" {
		u.StorageKey = &storageKey
	}
	if u.GenKey == nil && u.StorageKey == nil {
		return nil
	}
	slog.Info("storing API keys from configuration", "generation_key", u.GenKey != nil, "storage_key", u.StorageKey != nil)
	return p.SetKeys(u)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	svc, err := openServices(v)
	if err != nil {
		return err
	}
	defer svc.Close()

	authEnabled, err := seedAdmin(svc.db, v.GetString("admin-password"))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if !authEnabled {
		slog.Warn("no admin password configured, /api is unauthenticated")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	metrics.Register()

	keys := svc.keys.Keys()
	if keys.GenKey == "" {
		slog.Warn("generation API key is not configured, evaluations will fail until it is set")
	}
	if keys.StorageKey == "" {
		slog.Warn("storage API key is not configured, evaluations will not be stored")
	}

	cfg := model.Config{
		LLMProvider:    v.GetString("llm-provider"),
		LLMModel:       v.GetString("llm-model"),
		StorageBackend: v.GetString("storage-backend"),
		Bucket:         v.GetString("bucket"),
		Lang:           lang,
		AuthEnabled:    authEnabled,
		MaxUploadBytes: v.GetInt64("max-upload"),
		PersistTimeout: v.GetDuration("persist-timeout"),
	}
	h := handler.New(svc.db, svc.keys, svc.evaluator, svc.files, svc.validate, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"llm_provider", cfg.LLMProvider,
			"model", cfg.LLMModel,
			"storage_backend", cfg.StorageBackend,
			"bucket", cfg.Bucket,
			"lang", lang,
			"auth", authEnabled,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PersistTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	if err := svc.evaluator.Wait(shutdownCtx); err != nil {
		slog.Warn("pending evaluation writes did not finish", "error", err)
	}
	return nil
}

// seedAdmin creates or updates the admin user when a password is given. It reports
// whether any user exists, which turns on basic auth.
func seedAdmin(db *store.Store, password string) (bool, error) {
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return false, fmt.Errorf("hash admin password: %w", err)
		}
		admin, err := db.GetUserByUsername("admin")
		if err != nil {
			return false, err
		}
		if admin == nil {
			_, err = db.CreateUser(model.User{Username: "admin", PasswordHash: string(hash), Active: true})
			if err != nil {
				return false, fmt.Errorf("create admin user: %w", err)
			}
			slog.Info("seeded default admin user", "username", "admin")
		} else if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
			if err := db.SetUserPassword("admin", string(hash)); err != nil {
				return false, fmt.Errorf("update admin password: %w", err)
			}
			slog.Info("updated admin password", "username", "admin")
		}
	}

	count, err := db.UserCount()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func runKeysSet(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var u credentials.Update
	if cmd.Flags().Changed("gen-key") {
		k := v.GetString("gen-key")
		u.GenKey = &k
	}
	if cmd.Flags().Changed("storage-key") {
		k := v.GetString("storage-key")
		u.StorageKey = &k
	}
	if u.GenKey == nil && u.StorageKey == nil {
		return errors.New("nothing to set: pass --gen-key and/or --storage-key")
	}

	p := credentials.NewProvider(db)
	if err := p.SetKeys(u); err != nil {
		return err
	}
	return printKeys(cmd.OutOrStdout(), p.Keys(), false)
}

func runKeysShow(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return printKeys(cmd.OutOrStdout(), credentials.NewProvider(db).Keys(), v.GetBool("reveal"))
}

func printKeys(w io.Writer, k credentials.Keys, reveal bool) error {
	show := credentials.Mask
	if reveal {
		show = func(s string) string { return s }
	}
	notSet := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return show(s)
	}
	_, err := fmt.Fprintf(w, "generation key: %s\nstorage key:    %s\n", notSet(k.GenKey), notSet(k.StorageKey))
	return err
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	req, err := readRequest(cmd.InOrStdin(), v.GetString("file"))
	if err != nil {
		return err
	}

	svc, err := openServices(v)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eval, task, err := svc.evaluator.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if meta, err := task.Wait(ctx); err != nil {
		slog.Warn("evaluation was not stored", "error", err)
	} else {
		slog.Info("evaluation stored", "name", meta.Name, "url", meta.DownloadURL)
	}

	return writeOutput(cmd.OutOrStdout(), v.GetString("output"), eval)
}

func readRequest(stdin io.Reader, path string) (evaluation.Request, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return evaluation.Request{}, fmt.Errorf("read request: %w", err)
	}
	var req evaluation.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return evaluation.Request{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	svc, err := openServices(v)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	studentID := v.GetString("student")
	if id := v.GetString("assessment"); id != "" {
		eval, err := svc.evaluator.GetEvaluation(ctx, studentID, id)
		if err != nil {
			return fmt.Errorf("get evaluation: %w", err)
		}
		return writeOutput(cmd.OutOrStdout(), v.GetString("output"), eval)
	}

	evals, err := svc.evaluator.ListEvaluations(ctx, studentID)
	if err != nil {
		return fmt.Errorf("list evaluations: %w", err)
	}
	slog.Info("loaded evaluations", "student_id", studentID, "count", len(evals))
	return writeOutput(cmd.OutOrStdout(), v.GetString("output"), evals)
}

func writeOutput(stdout io.Writer, outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	w := stdout
	if outPath != "" && outPath != "-" {
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
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
