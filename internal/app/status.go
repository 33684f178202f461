package app

import (
	"errors"
	"fmt"
	"net/http"
)

// healthHandler reports liveness. Watch mode runs long enough for a
// supervisor to want one.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startStatusServer runs the health and metrics HTTP server. It is started
// at most once per App, however many build cycles follow.
func (a *App) startStatusServer() {
	a.serverOnce.Do(func() {
		a.logger.Debug("Configuring status server.")
		mux := http.NewServeMux()
		mux.HandleFunc("/health", a.healthHandler)
		mux.Handle("/metrics", a.metrics.Handler())

		addr := fmt.Sprintf(":%d", a.cfg.HealthcheckPort)

		go func() {
			a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Status server failed", "error", err)
			}
		}()
	})
}
