package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/resumeparser-backend/api/responses"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/db"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// Root answers on / so load balancers get a cheap 200.
func Root(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"message": cfg.App.Name + " backend is up"})
	}
}

// Health reports the app name and a best-effort dependency check. It always
// answers 200; dependency state is in the body.
func Health(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cacheP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		payload := map[string]string{
			"status": "ok",
			"app":    cfg.App.Name,
			"db":     check(ctx, logg, "db", dbP),
		}
		if cacheP != nil {
			payload["cache"] = check(ctx, logg, "cache", cacheP)
		}
		responses.WriteSuccess(w, payload)
	}
}

func check(ctx context.Context, logg *logger.Logger, name string, p db.Pinger) string {
	if p == nil {
		return "error"
	}
	if err := p.Ping(ctx); err != nil {
		if logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "health.dependency_down")
		}
		return "error"
	}
	return "ok"
}
