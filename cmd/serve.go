package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dogfriendly/venue-cli/internal/pipeline"
	"github.com/dogfriendly/venue-cli/internal/store"
)

var servePort int

// buildMux wires the HTTP routes. The store and pipeline may be nil in
// tests that only exercise request validation.
func buildMux(ctx context.Context, p *pipeline.Pipeline, st store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
	})

	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		job, err := st.GetJob(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
				return
			}
			zap.L().Error("job lookup failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job) //nolint:errcheck
	})

	mux.HandleFunc("POST /api/onboard", func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.OnboardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
			return
		}
		if p == nil {
			http.Error(w, `{"error":"pipeline unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		// Create the venue and job rows up front so the response carries
		// the IDs, then run the fetch stages asynchronously; poll
		// GET /api/jobs/{id} for progress.
		venue, job, err := p.Prepare(r.Context(), req)
		if err != nil {
			zap.L().Error("onboard prepare failed", zap.String("venue", req.Name), zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		go func() {
			if _, err := p.RunJob(ctx, venue, job); err != nil {
				zap.L().Error("onboard failed",
					zap.String("venue", req.Name),
					zap.String("job_id", job.ID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("onboard complete",
				zap.String("venue", req.Name),
				zap.String("job_id", job.ID),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"status":   "accepted",
			"venue_id": venue.ID,
			"job_id":   job.ID,
		})
	})

	return mux
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for onboarding requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildMux(ctx, env.Pipeline, env.Store),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
