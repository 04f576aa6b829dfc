package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/justinas/nosurf"
	"github.com/myrjola/orb/internal/contexthelpers"
	"github.com/myrjola/orb/internal/logging"
)

const playerIDSessionKey = "playerID"

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			`default-src 'self'; media-src 'self' blob:; object-src 'none'; base-uri 'none';`)

		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "received request",
			slog.String("proto", r.Proto),
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()))

		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, r, fmt.Errorf("%s", err)) //nolint:err113 // panics carry no sentinel
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// timeout responds with 503 Service Unavailable when the handler does not meet the deadline.
func (app *application) timeout(next http.Handler) http.Handler {
	return timeoutHandler(next, defaultTimeout)
}

// noSurf implements CSRF protection using https://github.com/justinas/nosurf. The browser sends the token from
// GET /api/csrf in the X-CSRF-Token header.
func (app *application) noSurf(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.SetBaseCookie(http.Cookie{ //nolint:exhaustruct // defaults are fine for the rest
		HttpOnly: true,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "csrf check failed",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("reason", fmt.Sprint(nosurf.Reason(r))))
		app.clientError(w, r, http.StatusForbidden)
	}))
	return csrfHandler
}

// identify gives every session a player id and tags the request context and its logs with it.
func (app *application) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		playerID := app.sessionManager.GetString(ctx, playerIDSessionKey)
		if playerID == "" {
			playerID = uuid.NewString()
			app.sessionManager.Put(ctx, playerIDSessionKey, playerID)
		}
		r = contexthelpers.SetPlayerID(r, playerID)
		r = r.WithContext(logging.WithAttrs(r.Context(), slog.String("player_id", playerID)))
		next.ServeHTTP(w, r)
	})
}

// requirePlayer is identify for streams, which cannot save the session. Requests without a player id are rejected.
func (app *application) requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := app.sessionManager.GetString(r.Context(), playerIDSessionKey)
		if playerID == "" {
			app.clientError(w, r, http.StatusUnauthorized)
			return
		}
		r = contexthelpers.SetPlayerID(r, playerID)
		r = r.WithContext(logging.WithAttrs(r.Context(), slog.String("player_id", playerID)))
		next.ServeHTTP(w, r)
	})
}

// rateLimit throttles each player's state changing requests.
func (app *application) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := app.player(w, r)
		if !ok {
			return
		}
		if !p.limiter.Allow() {
			app.clientError(w, r, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serverSentEventMiddleware makes our session library scs work with Server Sent Events (SSE).
// Use this instead of app.sessionManager.LoadAndSave.
// See https://github.com/alexedwards/scs/issues/141#issuecomment-1807075358
func (app *application) serverSentEventMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		cookie, err := r.Cookie(app.sessionManager.Cookie.Name)
		if err == nil {
			token = cookie.Value
		}
		ctx, err := app.sessionManager.Load(r.Context(), token)
		if err != nil {
			app.serverError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
