package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/justinas/nosurf"
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/contexthelpers"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/game"
)

type csrfView struct {
	Token string `json:"token"`
}

func (app *application) csrf(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, csrfView{Token: nosurf.Token(r)})
}

type suspectView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Alibi      string `json:"alibi"`
	Motive     string `json:"motive"`
	Appearance string `json:"appearance"`
}

// caseView is what a player may know of a case. The answer key stays on the server.
type caseView struct {
	ID          string        `json:"id"`
	Level       int           `json:"level"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle"`
	Victim      cases.Victim  `json:"victim"`
	Location    string        `json:"location"`
	TimeOfDeath string        `json:"timeOfDeath"`
	Setting     string        `json:"setting"`
	Suspects    []suspectView `json:"suspects"`
	Unlocked    bool          `json:"unlocked"`
	Completed   bool          `json:"completed"`
}

func (app *application) listCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	progress, err := app.game.Progress(ctx, contexthelpers.PlayerID(ctx))
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	all := app.game.Cases()
	views := make([]caseView, 0, len(all))
	for _, mc := range all {
		suspects := make([]suspectView, 0, len(mc.Suspects))
		for _, s := range mc.Suspects {
			suspects = append(suspects, suspectView{
				ID:         s.ID,
				Name:       s.Name,
				Title:      s.Title,
				Alibi:      s.Alibi,
				Motive:     s.Motive,
				Appearance: s.Appearance,
			})
		}
		views = append(views, caseView{
			ID:          mc.ID,
			Level:       mc.Level,
			Title:       mc.Title,
			Subtitle:    mc.Subtitle,
			Victim:      mc.Victim,
			Location:    mc.Location,
			TimeOfDeath: mc.TimeOfDeath,
			Setting:     mc.Setting,
			Suspects:    suspects,
			Unlocked:    progress.IsUnlocked(mc.Level),
			Completed:   progress.IsCompleted(mc.Level),
		})
	}
	app.writeJSON(w, r, http.StatusOK, views)
}

type progressView struct {
	Unlocked  []int `json:"unlocked"`
	Completed []int `json:"completed"`
}

func (app *application) progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	progress, err := app.game.Progress(ctx, contexthelpers.PlayerID(ctx))
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	view := progressView{Unlocked: []int{}, Completed: []int{}}
	for _, mc := range app.game.Cases() {
		if progress.IsUnlocked(mc.Level) {
			view.Unlocked = append(view.Unlocked, mc.Level)
		}
		if progress.IsCompleted(mc.Level) {
			view.Completed = append(view.Completed, mc.Level)
		}
	}
	app.writeJSON(w, r, http.StatusOK, view)
}

type exchangeView struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Emotion  string    `json:"emotion"`
	Clue     string    `json:"clue,omitempty"`
	Created  time.Time `json:"created"`
}

// transcript lists the questions the player has asked in the case at the level path value.
func (app *application) transcript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	playerID := contexthelpers.PlayerID(ctx)
	mc, ok := app.openCase(w, r, playerID, level)
	if !ok {
		return
	}
	exchanges, err := app.game.Transcript(ctx, playerID, mc.ID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	views := make([]exchangeView, 0, len(exchanges))
	for _, e := range exchanges {
		views = append(views, exchangeView{
			Question: e.Question,
			Answer:   e.Answer,
			Emotion:  e.Emotion,
			Clue:     e.Clue,
			Created:  e.Created,
		})
	}
	app.writeJSON(w, r, http.StatusOK, views)
}

type accuseRequest struct {
	Level   int    `json:"level"`
	Suspect string `json:"suspect"`
}

type verdictView struct {
	Correct   bool   `json:"correct"`
	Suspect   string `json:"suspect"`
	Narration string `json:"narration"`
	NextLevel int    `json:"nextLevel,omitempty"`
}

// accuse judges the accusation and has the Orb voice the verdict.
func (app *application) accuse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req accuseRequest
	if err := readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	playerID := contexthelpers.PlayerID(ctx)
	mc, ok := app.openCase(w, r, playerID, req.Level)
	if !ok {
		return
	}
	verdict, err := app.game.Accuse(ctx, playerID, mc.ID, req.Suspect)
	switch {
	case errors.Is(err, game.ErrUnknownSuspect):
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}

	p, ok := app.player(w, r)
	if !ok {
		return
	}
	// Supersedes a question in progress.
	p.controller.StartAnnouncement(verdict.Speech())

	app.writeJSON(w, r, http.StatusOK, verdictView{
		Correct:   verdict.Correct,
		Suspect:   verdict.Suspect,
		Narration: verdict.Narration,
		NextLevel: verdict.NextLevel,
	})
}

// openCase resolves the case at level for the player, answering the request itself when the player may not open it.
func (app *application) openCase(w http.ResponseWriter, r *http.Request, playerID string, level int) (cases.Case, bool) {
	mc, err := app.game.Case(r.Context(), playerID, level)
	switch {
	case errors.Is(err, game.ErrUnknownCase):
		app.notFound(w, r)
		return mc, false
	case errors.Is(err, game.ErrLevelLocked):
		app.clientError(w, r, http.StatusForbidden)
		return mc, false
	case err != nil:
		app.serverError(w, r, err)
		return mc, false
	}
	return mc, true
}
