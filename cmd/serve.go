package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger endpoint",
	Long:  "Accepts POST /start with {email, secret, url}, validates the shared secret, runs the chain to completion, and returns the run summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/start", handleStart)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// handleStart validates the shared secret and runs the chain in-process.
// The response blocks until the run finishes, matching the manual-curl
// trigger flow.
func handleStart(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Email  string `json:"email"`
		Secret string `json:"secret"`
		URL    string `json:"url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Email == "" || body.Secret == "" || body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, secret and url are required"})
		return
	}

	if cfg.Identity.Secret == "" ||
		subtle.ConstantTimeCompare([]byte(body.Secret), []byte(cfg.Identity.Secret)) != 1 {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid secret"})
		return
	}

	zap.L().Info("serve: starting run",
		zap.String("email", body.Email),
		zap.String("start_url", body.URL),
	)

	runner := newRunner(cfg)
	summary := runner.Run(req.Context(), model.Identity{Email: body.Email, Secret: body.Secret}, body.URL)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "done",
		"duration": summary.Duration.Seconds(),
		"result":   summary,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
