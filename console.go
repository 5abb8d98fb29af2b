package main

import (
	"errors"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/kr/pretty"

	"github.com/openfieldag/gosteer/config"
	"github.com/openfieldag/gosteer/geo"
	"github.com/openfieldag/gosteer/sim"
	"github.com/openfieldag/gosteer/track"
)

// addConsoleCommands wires the steering commands into the local shell.
// veh is nil outside simulator mode.
func addConsoleCommands(shell *ishell.Shell, veh *sim.Vehicle) {
	trackNames := func([]string) []string {
		tracks, err := ENV.Tracks.All()
		if err != nil {
			return nil
		}
		names := make([]string, 0, len(tracks))
		for _, t := range tracks {
			names = append(names, t.Name)
		}
		return names
	}

	// marks feed the ab command, newest last
	var marks []geo.Point

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "Print the current pilot status",
		Func: func(c *ishell.Context) {
			c.Printf("%# v\n", pretty.Formatter(ENV.Pilot.Status()))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "engage",
		Help: "Arm automatic steering",
		Func: func(c *ishell.Context) {
			if err := ENV.Pilot.Engage(); err != nil {
				c.Err(err)
				return
			}
			c.Println("Engaged")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "disengage",
		Help: "Drop automatic steering",
		Func: func(c *ishell.Context) {
			ENV.Pilot.Disengage()
			c.Println("Disengaged")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "tracks",
		Help: "List stored tracks",
		Func: func(c *ishell.Context) {
			tracks, err := ENV.Tracks.All()
			if err != nil {
				c.Err(err)
				return
			}
			for _, t := range tracks {
				c.Printf("%s  %-10s  %s\n", t.ID, t.Mode, t.Name)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "mark",
		Help: "Remember the current position for ab/curve",
		Func: func(c *ishell.Context) {
			snap := ENV.Pilot.Status()
			if !snap.GPSValid {
				c.Err(errors.New("no usable fix"))
				return
			}
			p := geo.Point{Easting: snap.Easting, Northing: snap.Northing}
			marks = append(marks, p)
			c.Printf("Mark %d at E%.2f N%.2f\n", len(marks), p.Easting, p.Northing)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "ab",
		Help: "ab <name> saves an AB line through the last two marks and steers it",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: ab <name>"))
				return
			}
			if len(marks) < 2 {
				c.Err(errors.New("need two marks first"))
				return
			}
			a, b := marks[len(marks)-2], marks[len(marks)-1]
			t, err := track.NewABLine(c.Args[0], a, b)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ENV.Tracks.Save(t); err != nil {
				c.Err(err)
				return
			}
			ENV.Pilot.SetTrack(t)
			c.Printf("Track %s active\n", t.Name)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "curve",
		Help: "curve <name> saves a smoothed curve through all marks and steers it",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: curve <name>"))
				return
			}
			if len(marks) < 2 {
				c.Err(errors.New("need at least two marks first"))
				return
			}
			pts := make([]geo.PathPoint, len(marks))
			for i, m := range marks {
				pts[i] = geo.PathPoint{Easting: m.Easting, Northing: m.Northing}
			}
			t, err := track.NewCurve(c.Args[0], geo.SmoothPath(pts, 3), track.ModeCurve)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ENV.Tracks.Save(t); err != nil {
				c.Err(err)
				return
			}
			ENV.Pilot.SetTrack(t)
			c.Printf("Track %s active (%d points)\n", t.Name, len(t.Points))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "activate",
		Completer: trackNames,
		Help:      "activate <name>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: activate <name>"))
				return
			}
			t, err := ENV.Tracks.ByName(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ENV.Pilot.SetTrack(t)
			c.Printf("Track %s active\n", t.Name)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "deactivate",
		Help: "Drop the active track (disengages)",
		Func: func(c *ishell.Context) {
			ENV.Pilot.SetTrack(nil)
			c.Println("No active track")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "nudge",
		Help: "nudge <meters>, positive moves the track right of travel",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: nudge <meters>"))
				return
			}
			m, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ENV.Pilot.Nudge(m); err != nil {
				c.Err(err)
				return
			}
			c.Printf("Nudged %.2fm\n", m)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "algorithm",
		Help: "algorithm <pursuit|stanley>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: algorithm <pursuit|stanley>"))
				return
			}
			name := c.Args[0]
			err := ENV.Settings.Update(func(cf *config.Config) { cf.Guidance.Algorithm = name })
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("Algorithm set to", name)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "reverse",
		Help: "reverse <on|off>",
		Func: func(c *ishell.Context) {
			on := len(c.Args) >= 1 && (c.Args[0] == "on" || c.Args[0] == "true" || c.Args[0] == "1")
			ENV.Pilot.SetReverse(on)
			if on {
				c.Println("Driving in reverse")
			} else {
				c.Println("Driving forward")
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sections",
		Help: "sections <mask>, e.g. 0xff or 255",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: sections <mask>"))
				return
			}
			mask, err := strconv.ParseUint(c.Args[0], 0, 16)
			if err != nil {
				c.Err(err)
				return
			}
			ENV.Pilot.SetSections(uint16(mask))
			c.Printf("Sections %016b\n", mask)
		},
	})

	if veh == nil {
		return
	}

	// simulator only
	shell.AddCmd(&ishell.Cmd{
		Name: "speed",
		Help: "speed <m/s>, negative backs up",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(errors.New("usage: speed <m/s>"))
				return
			}
			ms, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(err)
				return
			}
			veh.SetSpeed(ms)
			c.Printf("Speed %.1f m/s\n", ms)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "pose",
		Help: "pose <easting> <northing> <heading deg>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(errors.New("usage: pose <easting> <northing> <heading deg>"))
				return
			}
			e, err1 := strconv.ParseFloat(c.Args[0], 64)
			n, err2 := strconv.ParseFloat(c.Args[1], 64)
			h, err3 := strconv.ParseFloat(c.Args[2], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				c.Err(errors.New("pose arguments must be numbers"))
				return
			}
			veh.SetPose(e, n, mgl64.DegToRad(h))
			c.Printf("Teleported to E%.1f N%.1f H%.0f\n", e, n, h)
		},
	})
}
