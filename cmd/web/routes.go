package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthy", app.healthy)

	session := alice.New(app.timeout, app.sessionManager.LoadAndSave, app.noSurf, app.identify)
	orb := session.Append(app.rateLimit)
	// Streams outlive the request timeout and cannot save the session.
	stream := alice.New(app.serverSentEventMiddleware, app.requirePlayer)

	mux.Handle("GET /api/csrf", session.ThenFunc(app.csrf))
	mux.Handle("GET /api/cases", session.ThenFunc(app.listCases))
	mux.Handle("GET /api/cases/{level}/transcript", session.ThenFunc(app.transcript))
	mux.Handle("GET /api/progress", session.ThenFunc(app.progress))
	mux.Handle("POST /api/accuse", orb.ThenFunc(app.accuse))

	mux.Handle("GET /api/orb/status", session.ThenFunc(app.orbStatus))
	mux.Handle("POST /api/orb/narrate", orb.ThenFunc(app.narrate))
	mux.Handle("POST /api/orb/listen", orb.ThenFunc(app.listen))
	mux.Handle("POST /api/orb/transcript", orb.ThenFunc(app.submitTranscript))
	mux.Handle("POST /api/orb/capture-error", orb.ThenFunc(app.captureError))
	mux.Handle("POST /api/orb/capabilities", orb.ThenFunc(app.capabilities))
	mux.Handle("POST /api/orb/stop-listening", orb.ThenFunc(app.stopListening))
	mux.Handle("POST /api/orb/stop-audio", orb.ThenFunc(app.stopAudio))
	mux.Handle("POST /api/orb/reset", orb.ThenFunc(app.reset))
	mux.Handle("POST /api/orb/activate-audio", orb.ThenFunc(app.activateAudio))
	mux.Handle("POST /api/orb/playback-ended", session.ThenFunc(app.playbackEnded))

	mux.Handle("GET /api/orb/events", stream.ThenFunc(app.orbEvents))
	mux.Handle("GET /api/orb/clips/{clip}", stream.ThenFunc(app.orbClip))

	return app.recoverPanic(app.logRequest(secureHeaders(mux)))
}
