// Package pilot wires the fix stream, guidance engine, vehicle record and
// module link into the control cycle. One fix in, one steer frame out;
// everything else hangs off that loop.
package pilot

import (
	"bytes"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	. "math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openfieldag/gosteer/config"
	"github.com/openfieldag/gosteer/geo"
	"github.com/openfieldag/gosteer/gps"
	"github.com/openfieldag/gosteer/guidance"
	"github.com/openfieldag/gosteer/pgn"
	"github.com/openfieldag/gosteer/track"
	"github.com/openfieldag/gosteer/transport"
	"github.com/openfieldag/gosteer/vehicle"
)

var (
	ErrNoTrack        = errors.New("pilot: no active track")
	ErrNoFix          = errors.New("pilot: no usable fix yet")
	ErrModuleFirmware = errors.New("pilot: steer module firmware unsupported")
)

// Pilot owns the cycle state. All mutation happens under one mutex; the
// wire frames are caller-owned buffers reused every cycle.
type Pilot struct {
	mu sync.Mutex

	cfg    *config.Store
	state  *vehicle.State
	plane  *geo.LocalPlane
	parser gps.Parser
	sender transport.Sender
	logger *log.Logger

	active  *track.Track
	carried guidance.State
	engaged bool
	reverse bool

	machine pgn.MachineControl

	moduleKnown     bool
	moduleOK        bool
	moduleVersion   string
	lastSteerSwitch bool

	imuRoll    float64 // radians, NaN until an IMU shows up
	lastFixAt  time.Time
	lastResult guidance.Result
	badFrames  uint64
	sendBroken bool

	steerFrame   pgn.Frame
	machineFrame pgn.Frame

	listeners    []listener
	nextListener int
}

type listener struct {
	id int
	fn func(vehicle.Snapshot)
}

// New builds a pilot around a live configuration store and a module link.
// sender may be nil when running headless, for example in tests that only
// exercise the cycle math.
func New(cfg *config.Store, sender transport.Sender) *Pilot {
	return &Pilot{
		cfg:     cfg,
		state:   vehicle.New(),
		plane:   &geo.LocalPlane{},
		sender:  sender,
		logger:  log.New(os.Stdout, "[pilot] ", log.Ldate|log.Ltime),
		imuRoll: NaN(),
	}
}

// OnFix runs one guidance cycle. It always transmits, even without a
// usable solution: the modules watchdog on frame silence, so the
// no-authority frame doubles as the heartbeat.
func (p *Pilot) OnFix(fix *gps.Fix) {
	p.mu.Lock()

	cfg := p.cfg.Snapshot()

	// the first valid fix anchors the local plane
	if !p.plane.HasOrigin() && fix.Valid() {
		p.plane.SetOrigin(fix.Latitude, fix.Longitude)
		p.logger.Printf("plane origin %.7f, %.7f", fix.Latitude, fix.Longitude)
	}

	var antenna geo.Point
	localized := false
	if fix.Valid() && p.plane.HasOrigin() {
		if pt, err := p.plane.ToLocal(fix.Latitude, fix.Longitude); err == nil {
			antenna = pt
			localized = true
		}
	}

	roll := fix.Roll
	if IsNaN(roll) {
		roll = p.imuRoll
	}

	// the antenna rides on the roof and swings sideways with roll; project
	// it back to the ground before anything downstream sees the position
	if localized && !IsNaN(fix.Heading) && !IsNaN(roll) && cfg.Vehicle.AntennaHeight > 0 {
		antenna = geo.Offset(antenna, fix.Heading-Pi/2, cfg.Vehicle.AntennaHeight*Sin(roll))
	}

	p.lastFixAt = time.Now()
	p.state.UpdateFix(fix, antenna.Easting, antenna.Northing, localized && !IsNaN(fix.Heading))

	// the antenna rides ahead of the pivot axle; the steer axle leads the
	// pivot by the wheelbase
	pivot := geo.Offset(antenna, fix.Heading+Pi, cfg.Vehicle.AntennaPivot)
	steerPos := geo.Offset(pivot, fix.Heading, cfg.Vehicle.Wheelbase)

	in := guidance.Input{
		Track:         p.active,
		Algorithm:     cfg.Algorithm(),
		Pivot:         pivot,
		SteerPos:      steerPos,
		Heading:       fix.Heading,
		Speed:         fix.Speed,
		Reverse:       p.reverse,
		Roll:          roll,
		RollGain:      cfg.SideHill.RollGain,
		Wheelbase:     cfg.Vehicle.Wheelbase,
		MaxSteerAngle: cfg.Vehicle.MaxSteerAngle,
		Pursuit:       cfg.PursuitTuning(fix.Speed),
		Stanley:       cfg.StanleyTuning(),
		Carried:       &p.carried,
	}
	if !localized {
		in.Track = nil
	}
	res := guidance.Compute(&in)
	p.lastResult = res

	onTrack := res.Valid && Abs(res.CrossTrack) <= cfg.Guidance.OnTrackBand
	p.state.ApplyControl(&res, p.engaged, onTrack)

	snap := p.state.Snapshot()
	pgn.EncodeSteerData(&snap, &p.steerFrame)
	pgn.EncodeMachineData(&p.machine, snap.Speed, snap.Sections, &p.machineFrame)

	steer := p.steerFrame
	machine := p.machineFrame
	sender := p.sender
	listeners := p.listeners
	p.mu.Unlock()

	if sender != nil {
		err := sender.Send(steer.Bytes())
		if err == nil {
			err = sender.Send(machine.Bytes())
		}
		p.noteSend(err)
	}
	for _, l := range listeners {
		l.fn(snap)
	}
}

// SetSender attaches or replaces the module link. It exists so the
// transport's receive handler can point at a pilot built first.
func (p *Pilot) SetSender(s transport.Sender) {
	p.mu.Lock()
	p.sender = s
	p.mu.Unlock()
}

// OnDatagram sorts one inbound chunk by its leading byte: NMEA text goes
// to the sentence parser, module frames through checksum validation to
// their handlers. Anything else is counted and dropped.
func (p *Pilot) OnDatagram(raw []byte) {
	if len(raw) == 0 {
		return
	}

	if raw[0] == '$' {
		for len(raw) > 0 {
			line := raw
			if i := bytes.IndexByte(raw, '\n'); i >= 0 {
				line, raw = raw[:i], raw[i+1:]
			} else {
				raw = nil
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if fix, done := p.parser.Parse(string(line)); done {
				p.OnFix(&fix)
			}
		}
		return
	}

	f, err := pgn.Validate(raw)
	if err != nil {
		p.mu.Lock()
		p.badFrames++
		p.mu.Unlock()
		return
	}

	switch f.PGN() {
	case pgn.PGNFromSteer:
		fb, err := pgn.ParseFromSteer(&f)
		if err != nil {
			return
		}
		p.state.ApplySteerFeedback(fb.SteerAngle, fb.SteerSwitch, fb.WorkSwitch, fb.PWM)
		if !IsNaN(fb.Roll) {
			rollRad := mgl64.DegToRad(fb.Roll)
			p.state.UpdateIMU(rollRad, NaN(), NaN())
			p.mu.Lock()
			p.imuRoll = rollRad
			p.mu.Unlock()
		}
		p.handleSteerSwitch(fb.SteerSwitch)

	case pgn.PGNIMUData:
		r, err := pgn.ParseIMU(&f)
		if err != nil {
			return
		}
		rollRad := mgl64.DegToRad(r.Roll)
		p.state.UpdateIMU(rollRad, mgl64.DegToRad(r.Pitch), mgl64.DegToRad(r.YawRate))
		if !IsNaN(rollRad) {
			p.mu.Lock()
			p.imuRoll = rollRad
			p.mu.Unlock()
		}

	case pgn.PGNHelloFromSteer:
		v, err := pgn.ParseHello(&f)
		if err != nil {
			return
		}
		p.handleHello(v)
	}
}

// handleSteerSwitch disengages on the falling edge of the physical
// switch. Rising edges do nothing; engagement always goes through Engage
// so its checks cannot be bypassed from the cab.
func (p *Pilot) handleSteerSwitch(on bool) {
	p.mu.Lock()
	released := p.lastSteerSwitch && !on && p.engaged
	if released {
		p.engaged = false
	}
	p.lastSteerSwitch = on
	p.mu.Unlock()

	if released {
		p.logger.Print("steer switch released, disengaged")
	}
}

// ForceSafeOutput drops steering authority and pushes a no-authority
// frame immediately instead of waiting for a fix that may never come. The
// watchdog calls it when the fix feed goes quiet.
func (p *Pilot) ForceSafeOutput() {
	p.state.DropAuthority()

	p.mu.Lock()
	p.engaged = false
	snap := p.state.Snapshot()
	pgn.EncodeSteerData(&snap, &p.steerFrame)
	steer := p.steerFrame
	sender := p.sender
	listeners := p.listeners
	p.mu.Unlock()

	if sender != nil {
		p.noteSend(sender.Send(steer.Bytes()))
	}
	for _, l := range listeners {
		l.fn(snap)
	}
}

// LastFixAt reports when the last fix arrived, for the watchdog.
func (p *Pilot) LastFixAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFixAt
}

// Engage arms automatic steering. It refuses without a track, without a
// usable fix, or against a module whose firmware failed the version gate.
func (p *Pilot) Engage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return ErrNoTrack
	}
	if p.moduleKnown && !p.moduleOK {
		return ErrModuleFirmware
	}
	if !p.state.Snapshot().GPSValid {
		return ErrNoFix
	}
	p.engaged = true
	return nil
}

// Disengage stops commanding the wheel. The heartbeat keeps flowing.
func (p *Pilot) Disengage() {
	p.mu.Lock()
	p.engaged = false
	p.mu.Unlock()
}

func (p *Pilot) Engaged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engaged
}

// SetTrack activates a track for guidance. Passing nil clears it and
// disengages.
func (p *Pilot) SetTrack(t *track.Track) {
	p.mu.Lock()
	p.active = t
	if t == nil {
		p.engaged = false
	}
	p.mu.Unlock()
}

// ActiveTrack returns a copy of the active track, or nil.
func (p *Pilot) ActiveTrack() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	return p.active.Clone()
}

// Nudge shifts the active track sideways, positive to the right of its
// direction of travel.
func (p *Pilot) Nudge(d float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return ErrNoTrack
	}
	p.active.Nudge(d)
	return nil
}

// SetReverse flags reverse driving, which flips the controller geometry.
func (p *Pilot) SetReverse(reverse bool) {
	p.mu.Lock()
	p.reverse = reverse
	p.mu.Unlock()
	p.state.SetReverse(reverse)
}

// SetSections updates the implement section mask carried in both outbound
// frames.
func (p *Pilot) SetSections(mask uint16) {
	p.state.SetSections(mask)
}

// SetMachine updates the machine outputs sent each cycle.
func (p *Pilot) SetMachine(mc pgn.MachineControl) {
	p.mu.Lock()
	p.machine = mc
	p.mu.Unlock()
}

func (p *Pilot) Machine() pgn.MachineControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine
}

// PushSettings sends the motor gains to the steer module right away.
func (p *Pilot) PushSettings(s *pgn.SteerSettings) error {
	p.mu.Lock()
	sender := p.sender
	p.mu.Unlock()
	if sender == nil {
		return nil
	}
	var f pgn.Frame
	pgn.EncodeSteerSettings(s, &f)
	return sender.Send(f.Bytes())
}

// PushConfig sends the wiring configuration to the steer module.
func (p *Pilot) PushConfig(c *pgn.SteerConfig) error {
	p.mu.Lock()
	sender := p.sender
	p.mu.Unlock()
	if sender == nil {
		return nil
	}
	var f pgn.Frame
	pgn.EncodeSteerConfig(c, &f)
	return sender.Send(f.Bytes())
}

// LastResult returns the most recent guidance result.
func (p *Pilot) LastResult() guidance.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastResult
}

// AddListener registers a snapshot consumer notified after every cycle.
// Listeners run on the cycle goroutine and must return quickly. The
// returned function unregisters it again.
func (p *Pilot) AddListener(fn func(vehicle.Snapshot)) (remove func()) {
	p.mu.Lock()
	p.nextListener++
	id := p.nextListener
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// rebuild so a cycle still iterating the old slice is untouched
		next := make([]listener, 0, len(p.listeners))
		for _, l := range p.listeners {
			if l.id != id {
				next = append(next, l)
			}
		}
		p.listeners = next
	}
}

// Status is the full picture the API and console render.
type Status struct {
	vehicle.Snapshot
	Engaged       bool            `json:"engaged"`
	Reverse       bool            `json:"reverse"`
	ModuleVersion string          `json:"module_version"`
	ModuleOK      bool            `json:"module_ok"`
	TrackID       string          `json:"track_id"`
	TrackName     string          `json:"track_name"`
	Algorithm     string          `json:"algorithm"`
	Guidance      guidance.Result `json:"guidance"`
	BadFrames     uint64          `json:"bad_frames"`
}

func (p *Pilot) Status() Status {
	snap := p.state.Snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		Snapshot:      snap,
		Engaged:       p.engaged,
		Reverse:       p.reverse,
		ModuleVersion: p.moduleVersion,
		ModuleOK:      !p.moduleKnown || p.moduleOK,
		Algorithm:     p.cfg.Snapshot().Guidance.Algorithm,
		Guidance:      p.lastResult,
		BadFrames:     p.badFrames,
	}
	if p.active != nil {
		st.TrackID = p.active.ID.String()
		st.TrackName = p.active.Name
	}
	return st
}

// State exposes the vehicle record for wiring into the API layer.
func (p *Pilot) State() *vehicle.State {
	return p.state
}

// Close shuts the module link.
func (p *Pilot) Close() error {
	p.mu.Lock()
	sender := p.sender
	p.sender = nil
	p.mu.Unlock()
	if sender == nil {
		return nil
	}
	return sender.Close()
}

func (p *Pilot) noteSend(err error) {
	p.mu.Lock()
	broken := p.sendBroken
	p.sendBroken = err != nil
	p.mu.Unlock()

	if err != nil && !broken {
		p.logger.Print("module link send: ", err)
	} else if err == nil && broken {
		p.logger.Print("module link restored")
	}
}
