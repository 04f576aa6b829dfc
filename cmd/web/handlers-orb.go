package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/myrjola/orb/internal/capture"
	"github.com/myrjola/orb/internal/contexthelpers"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/remote"
	"github.com/myrjola/orb/internal/speech"
)

// keepAliveInterval is how often an idle event stream sends a comment so that proxies keep it open.
const keepAliveInterval = 15 * time.Second

// respondStatus answers with the pipeline status, 202 when the trigger was accepted and 409 when it was ignored.
func (app *application) respondStatus(w http.ResponseWriter, r *http.Request, p *player, accepted bool) {
	status := http.StatusAccepted
	if !accepted {
		status = http.StatusConflict
	}
	app.writeJSON(w, r, status, p.controller.Status())
}

func (app *application) orbStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	app.writeJSON(w, r, http.StatusOK, p.controller.Status())
}

type narrateRequest struct {
	Level int `json:"level"`
}

func (app *application) narrate(w http.ResponseWriter, r *http.Request) {
	var req narrateRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	mc, ok := app.openCase(w, r, contexthelpers.PlayerID(r.Context()), req.Level)
	if !ok {
		return
	}
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	app.respondStatus(w, r, p, p.controller.StartStoryNarration(mc))
}

func (app *application) listen(w http.ResponseWriter, r *http.Request) {
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	app.respondStatus(w, r, p, p.controller.StartVoiceCapture())
}

type transcriptRequest struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// submitTranscript hands the browser's final transcript to the open capture session.
func (app *application) submitTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	err := p.capture.Submit(req.Text, req.Confidence)
	app.respondCapture(w, r, p, err)
}

type captureErrorRequest struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// captureError ends the open capture session with the browser's recognition error.
func (app *application) captureError(w http.ResponseWriter, r *http.Request) {
	var req captureErrorRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	err := p.capture.Fail(capture.ParseKind(req.Kind), req.Message)
	app.respondCapture(w, r, p, err)
}

func (app *application) respondCapture(w http.ResponseWriter, r *http.Request, p *player, err error) {
	switch {
	case errors.Is(err, capture.ErrNotListening):
		app.respondStatus(w, r, p, false)
	case err != nil:
		app.serverError(w, r, err)
	default:
		app.respondStatus(w, r, p, true)
	}
}

type capabilitiesRequest struct {
	SpeechRecognition bool `json:"speechRecognition"`
}

type capabilitiesView struct {
	VoiceSupported bool `json:"voiceSupported"`
}

func (app *application) capabilities(w http.ResponseWriter, r *http.Request) {
	var req capabilitiesRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	p.capture.SetAvailable(req.SpeechRecognition)
	app.writeJSON(w, r, http.StatusOK, capabilitiesView{VoiceSupported: p.controller.IsVoiceSupported()})
}

func (app *application) stopListening(w http.ResponseWriter, r *http.Request) {
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	p.controller.StopVoiceCapture()
	app.writeJSON(w, r, http.StatusOK, p.controller.Status())
}

func (app *application) stopAudio(w http.ResponseWriter, r *http.Request) {
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	p.controller.StopAudio()
	p.output.StopAll()
	app.writeJSON(w, r, http.StatusOK, p.controller.Status())
}

func (app *application) reset(w http.ResponseWriter, r *http.Request) {
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	p.controller.Reset()
	p.output.StopAll()
	app.writeJSON(w, r, http.StatusOK, p.controller.Status())
}

// activateAudio records the user gesture that lets the browser play audio.
func (app *application) activateAudio(w http.ResponseWriter, r *http.Request) {
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	p.output.Activate()
	w.WriteHeader(http.StatusNoContent)
}

type playbackEndedRequest struct {
	Clip string `json:"clip"`
}

func (app *application) playbackEnded(w http.ResponseWriter, r *http.Request) {
	var req playbackEndedRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	if err := p.output.Ended(req.Clip); err != nil {
		if errors.Is(err, remote.ErrUnknownClip) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// orbEvents streams the player's pipeline events as Server Sent Events until the client goes away or the player is
// closed.
func (app *application) orbEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)
	if err := liftDeadlines(rc); err != nil {
		app.serverError(w, r, err)
		return
	}
	events, unsubscribe := p.events.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(e remote.Event) bool {
		if err := writeEvent(w, e); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
			return false
		}
		if err := rc.Flush(); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
			return false
		}
		return true
	}
	if !send(remote.Event{Type: remote.EventStatus, Data: p.controller.Status()}) {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-events:
			if !open || !send(e) {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// liftDeadlines exempts a long-lived stream from the server's read and write timeouts. An expired read deadline would
// also cancel the request context.
func liftDeadlines(rc *http.ResponseController) error {
	if err := rc.SetReadDeadline(time.Time{}); err != nil {
		return errors.Wrap(err, "lift read deadline")
	}
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		return errors.Wrap(err, "lift write deadline")
	}
	return nil
}

func writeEvent(w http.ResponseWriter, e remote.Event) error {
	data, err := marshalEventData(e)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return errors.Wrap(err, "write event")
	}
	return nil
}

func marshalEventData(e remote.Event) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event", slog.String("type", e.Type))
	}
	return data, nil
}

// orbClip streams a clip announced in a play event.
func (app *application) orbClip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := app.player(w, r)
	if !ok {
		return
	}
	clipID := r.PathValue("clip")
	rc := http.NewResponseController(w)
	if err := liftDeadlines(rc); err != nil {
		app.serverError(w, r, err)
		return
	}

	started := false
	err := p.output.Stream(ctx, clipID, func(chunk []byte) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", contentType(clipID, p))
			w.Header().Set("Cache-Control", "private, max-age=3600")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write(chunk); err != nil {
			return errors.Wrap(err, "write clip")
		}
		if err := rc.Flush(); err != nil {
			return errors.Wrap(err, "flush clip")
		}
		return nil
	})
	switch {
	case errors.Is(err, remote.ErrUnknownClip) && !started:
		app.notFound(w, r)
	case err != nil:
		app.logger.LogAttrs(ctx, slog.LevelDebug, "clip stream ended early",
			slog.String("clip", clipID), errors.SlogError(err))
	}
}

// contentType guesses from the cached clip. Clips still being offered are mp3 unless the cache says otherwise.
func contentType(clipID string, p *player) string {
	if clip, err := p.output.Clip(clipID); err == nil && clip.Format == speech.FormatWAV {
		return "audio/wav"
	}
	return "audio/mpeg"
}
