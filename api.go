package main

import (
	"errors"
	"net/http"

	"github.com/asdine/storm/v3"
	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/openfieldag/gosteer/config"
	"github.com/openfieldag/gosteer/geo"
	"github.com/openfieldag/gosteer/pgn"
	"github.com/openfieldag/gosteer/track"
)

//---
// Payloads
//---

type ReversePayload struct {
	Reverse bool `json:"reverse"`
}

func (p *ReversePayload) Bind(r *http.Request) error {
	return nil
}

type SectionsPayload struct {
	Mask uint16 `json:"mask"`
}

func (p *SectionsPayload) Bind(r *http.Request) error {
	return nil
}

type MachinePayload struct {
	pgn.MachineControl
}

func (p *MachinePayload) Bind(r *http.Request) error {
	return nil
}

type ModuleSettingsPayload struct {
	pgn.SteerSettings
}

func (p *ModuleSettingsPayload) Bind(r *http.Request) error {
	return nil
}

type ModuleConfigPayload struct {
	pgn.SteerConfig
}

func (p *ModuleConfigPayload) Bind(r *http.Request) error {
	return nil
}

// TrackPayload creates a track. Points are local plane coordinates as
// reported by /api/state, so a client marks A and B by reading the state
// it is already watching.
type TrackPayload struct {
	Name     string          `json:"name"`
	Mode     string          `json:"mode"`
	Points   []geo.PathPoint `json:"points"`
	Activate bool            `json:"activate"`
}

func (p *TrackPayload) Bind(r *http.Request) error {
	if p.Name == "" {
		return errors.New("track name is required")
	}
	if _, ok := track.ParseMode(p.Mode); !ok {
		return errors.New("unknown track mode")
	}
	return nil
}

type NudgePayload struct {
	Meters float64 `json:"meters"`
}

func (p *NudgePayload) Bind(r *http.Request) error {
	return nil
}

//---
// Pilot views
//---

// GetState returns the full pilot status, the same document the
// websocket pushes.
func GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Pilot.Status())
}

// GetGuidance returns the last guidance computation on its own, for
// clients that only draw the lightbar.
func GetGuidance(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Pilot.LastResult())
}

func PostEngage(w http.ResponseWriter, r *http.Request) {
	if err := ENV.Pilot.Engage(); err != nil {
		render.Render(w, r, ErrConflict(err))
		return
	}
	render.JSON(w, r, ENV.Pilot.Status())
}

func PostDisengage(w http.ResponseWriter, r *http.Request) {
	ENV.Pilot.Disengage()
	render.JSON(w, r, ENV.Pilot.Status())
}

func PostReverse(w http.ResponseWriter, r *http.Request) {
	data := &ReversePayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	ENV.Pilot.SetReverse(data.Reverse)
	render.JSON(w, r, ENV.Pilot.Status())
}

func PostSections(w http.ResponseWriter, r *http.Request) {
	data := &SectionsPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	ENV.Pilot.SetSections(data.Mask)
	render.JSON(w, r, ENV.Pilot.Status())
}

func PostMachine(w http.ResponseWriter, r *http.Request) {
	data := &MachinePayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	ENV.Pilot.SetMachine(data.MachineControl)
	render.JSON(w, r, ENV.Pilot.Machine())
}

//---
// Settings views
//---

func GetSettings(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Settings.Snapshot())
}

// PutSettings overlays the posted document on the current configuration
// and swaps it in if the result still validates.
func PutSettings(w http.ResponseWriter, r *http.Request) {
	cfg := ENV.Settings.Snapshot()
	if err := render.DecodeJSON(r.Body, &cfg); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	err := ENV.Settings.Update(func(c *config.Config) { *c = cfg })
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	render.JSON(w, r, ENV.Settings.Snapshot())
}

// PutModuleSettings pushes gains down to the steer module.
func PutModuleSettings(w http.ResponseWriter, r *http.Request) {
	data := &ModuleSettingsPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := ENV.Pilot.PushSettings(&data.SteerSettings); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, data.SteerSettings)
}

// PutModuleConfig pushes wiring flags down to the steer module.
func PutModuleConfig(w http.ResponseWriter, r *http.Request) {
	data := &ModuleConfigPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := ENV.Pilot.PushConfig(&data.SteerConfig); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, data.SteerConfig)
}

//---
// Track views
//---

func ListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := ENV.Tracks.All()
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, tracks)
}

func CreateTrack(w http.ResponseWriter, r *http.Request) {
	data := &TrackPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	mode, _ := track.ParseMode(data.Mode)
	var t *track.Track
	var err error
	if mode == track.ModeLine {
		t, err = track.NewABLineFromPoints(data.Name, data.Points)
	} else {
		t, err = track.NewCurve(data.Name, data.Points, mode)
	}
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err := ENV.Tracks.Save(t); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	if data.Activate {
		ENV.Pilot.SetTrack(t)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, t)
}

func GetTrack(w http.ResponseWriter, r *http.Request) {
	t, err := trackFromURL(r)
	if err != nil {
		renderTrackErr(w, r, err)
		return
	}
	render.JSON(w, r, t)
}

func DeleteTrack(w http.ResponseWriter, r *http.Request) {
	t, err := trackFromURL(r)
	if err != nil {
		renderTrackErr(w, r, err)
		return
	}

	// never leave the pilot steering toward a deleted path
	if active := ENV.Pilot.ActiveTrack(); active != nil && active.ID == t.ID {
		ENV.Pilot.SetTrack(nil)
	}

	if err := ENV.Tracks.Delete(t.ID); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.NoContent(w, r)
}

func ActivateTrack(w http.ResponseWriter, r *http.Request) {
	t, err := trackFromURL(r)
	if err != nil {
		renderTrackErr(w, r, err)
		return
	}
	ENV.Pilot.SetTrack(t)
	render.JSON(w, r, ENV.Pilot.Status())
}

func DeactivateTrack(w http.ResponseWriter, r *http.Request) {
	ENV.Pilot.SetTrack(nil)
	render.JSON(w, r, ENV.Pilot.Status())
}

func NudgeTrack(w http.ResponseWriter, r *http.Request) {
	data := &NudgePayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := ENV.Pilot.Nudge(data.Meters); err != nil {
		render.Render(w, r, ErrConflict(err))
		return
	}
	render.JSON(w, r, ENV.Pilot.ActiveTrack())
}

//---
// Helpers
//---

var errBadTrackID = errors.New("malformed track id")

func trackFromURL(r *http.Request) (*track.Track, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, errBadTrackID
	}
	return ENV.Tracks.ByID(id)
}

func renderTrackErr(w http.ResponseWriter, r *http.Request, err error) {
	switch err {
	case errBadTrackID:
		render.Render(w, r, ErrInvalidRequest(err))
	case storm.ErrNotFound:
		render.Render(w, r, ErrNotFound)
	default:
		render.Render(w, r, ErrRender(err))
	}
}
