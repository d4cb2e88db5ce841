package routes

import (
	"net/http"
	"strings"
)

type createEventRequest struct {
	Artist   string `json:"artist,omitempty"`
	Duration uint64 `json:"duration"`
}

func (a *api) createEvent(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	artist := caller
	if strings.TrimSpace(req.Artist) != "" {
		if artist, err = parseAddress("artist", req.Artist); err != nil {
			writeError(w, err)
			return
		}
	}
	id, err := a.ledger.CreateTippingEvent(r.Context(), caller, artist, req.Duration)
	if err != nil {
		writeError(w, err)
		return
	}
	evt, err := a.ledger.Event(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventView(evt, a.currentHeight()))
}

func (a *api) getEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	evt, err := a.ledger.Event(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(evt, a.currentHeight()))
}

// getArtistEvents lists the events of an artist that are active now.
func (a *api) getArtistEvents(w http.ResponseWriter, r *http.Request) {
	artist, err := pathAddress(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	active, err := a.ledger.ActiveEvents(artist)
	if err != nil {
		writeError(w, err)
		return
	}
	height := a.currentHeight()
	views := make([]eventView, 0, len(active))
	for _, evt := range active {
		views = append(views, newEventView(evt, height))
	}
	writeJSON(w, http.StatusOK, views)
}
