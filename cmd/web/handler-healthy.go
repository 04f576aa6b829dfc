package main

import "net/http"

type healthView struct {
	Status   string   `json:"status"`
	Narrator []string `json:"narrator"`
	Voice    []string `json:"voice"`
}

// healthy reports that the server is up and which voices the Orb speaks with.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, healthView{
		Status:   "ok",
		Narrator: app.narrator.Strategies(),
		Voice:    app.voice.Strategies(),
	})
}
