package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/myrjola/orb/internal/contexthelpers"
	"github.com/myrjola/orb/internal/errors"
)

// maxBodyBytes bounds JSON request bodies. Transcripts are the longest.
const maxBodyBytes = 16 << 10

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeError(w, r, http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri))
	app.writeError(w, r, status)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound)
}

type errorView struct {
	Error string `json:"error"`
}

func (app *application) writeError(w http.ResponseWriter, r *http.Request, status int) {
	app.writeJSON(w, r, status, errorView{Error: http.StatusText(status)})
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		err = errors.Wrap(err, "marshal response")
		app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(body); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "write response", errors.SlogError(err))
	}
}

// readJSON decodes the request body into v. An empty body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// player returns the live player of the request, answering the request itself when that fails.
func (app *application) player(w http.ResponseWriter, r *http.Request) (*player, bool) {
	playerID := contexthelpers.PlayerID(r.Context())
	if playerID == "" {
		app.clientError(w, r, http.StatusUnauthorized)
		return nil, false
	}
	p, err := app.players.get(playerID)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get player"))
		return nil, false
	}
	return p, true
}
