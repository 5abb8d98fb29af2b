package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/joho/godotenv"

	"github.com/openfieldag/gosteer/config"
	"github.com/openfieldag/gosteer/pgn"
	"github.com/openfieldag/gosteer/pilot"
	"github.com/openfieldag/gosteer/sim"
	"github.com/openfieldag/gosteer/track"
	"github.com/openfieldag/gosteer/transport"
)

type EnvConfig struct {
	JWT_ISSUER string `env:"STEER_DEVICE_ID" envDefault:"DEV"`
	DEBUG      bool   `env:"STEER_DEBUG" envDefault:"0"`
	DATADIR    string `env:"STEER_DATA_DIR" envDefault:"./tmp"`
	HTMLDIR    string `env:"STEER_UI_DIR" envDefault:"./ui/dist/"`
	DB         *storm.DB
	Pilot      *pilot.Pilot
	Tracks     *track.Store
	Settings   *config.Store
	Simulated  bool
}

var (
	ENV *EnvConfig
)

func init() {
	// a .env file is a development convenience, deployments set the
	// environment directly
	godotenv.Load()

	ENV = new(EnvConfig)
	env.Parse(ENV)

	// setup database
	dbFile, _ := filepath.Abs(filepath.Join(ENV.DATADIR, "gosteer.db"))
	dir := filepath.Dir(dbFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		os.Mkdir(dir, 0755)
	}

	db, err := openDb(dbFile)
	if err != nil {
		panic(err)
	}
	ENV.DB = db
}

func main() {
	// process flags
	simulated := flag.Bool("sim", false, "Run against a built in vehicle simulator instead of real hardware")
	cfgFile := flag.String("config", "", "Path to a steering configuration file")
	addr := flag.String("addr", "", "Override the ip:port the API listens on")
	flag.Parse()

	defer ENV.DB.Close() // close database when finished

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		panic(fmt.Sprintf("Unable to load configuration: %v", err))
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}

	if cfg.API.JWTSecret != "" {
		JWT_HMAC_SECRET = []byte(cfg.API.JWTSecret)
	} else if ENV.JWT_ISSUER != "DEV" {
		panic(fmt.Sprintf("STEER_JWT_SECRET must be set on device %q", ENV.JWT_ISSUER))
	}

	ENV.Simulated = *simulated
	ENV.Settings = config.NewStore(cfg)

	tracks, err := track.NewStore(ENV.DB)
	if err != nil {
		panic(fmt.Sprintf("Unable to open track store: %v", err))
	}
	ENV.Tracks = tracks

	p := pilot.New(ENV.Settings, nil)
	ENV.Pilot = p

	// the transport hands incoming traffic to the pilot, the pilot hands
	// outgoing frames to the transport
	var veh *sim.Vehicle
	if ENV.Simulated {
		println("Creating simulator")
		veh = sim.New(52.0, 13.0)
		veh.SetSpeed(2) // moving from the start makes the sim useful immediately
		p.SetSender(veh)
	} else {
		switch cfg.Transport.Mode {
		case "udp":
			udp, err := transport.ListenUDP(cfg.Transport.ListenPort, cfg.Transport.ModulePort, cfg.Transport.Broadcast, p.OnDatagram)
			if err != nil {
				panic(fmt.Sprintf("Unable to open UDP transport: %v", err))
			}
			p.SetSender(udp)
		case "serial":
			ser, err := transport.OpenSerial(cfg.Transport.Device, cfg.Transport.Baud, p.OnDatagram)
			if err != nil {
				panic(fmt.Sprintf("Unable to open serial transport: %v", err))
			}
			p.SetSender(ser)
		default:
			panic(fmt.Sprintf("Unknown transport mode %q", cfg.Transport.Mode))
		}
	}
	defer p.Close()

	if veh != nil {
		go runSimulator(veh, p)
	}
	go runWatchdog(p, ENV.Settings)

	//---
	// Create a local shell
	//---
	{
		shell := ishell.New()
		shell.Println("gosteer operator shell")
		shell.ShowPrompt(true)
		shell.AddCmd(&ishell.Cmd{
			Name: "createsuperuser",
			Help: "createsuperuser <username> <password>",
			Func: func(c *ishell.Context) {
				// disable the '>>>' for cleaner same line input.
				c.ShowPrompt(false)
				defer c.ShowPrompt(true) // yes, revert when done.

				// get username
				var username string
				if len(c.Args) >= 1 {
					username = c.Args[0]
				} else {
					c.Print("Username: ")
					username = c.ReadLine()
				}

				// get password
				var password string
				if len(c.Args) >= 2 {
					password = c.Args[1]
				} else {
					c.Print("Password: ")
					password = c.ReadPassword()
				}

				// create user
				user := &User{
					Username: username,
					Name:     username,
					Admin:    true,
				}
				user.SetPassword([]byte(password))
				err := ENV.DB.Save(user)
				if err != nil {
					panic(err)
				}

				c.Println("Superuser created")
			},
		})

		// Add device specific commands
		addConsoleCommands(shell, veh)

		// Start an instance of the shell so it can be controlled from the CLI
		go shell.Start()
	}

	r := buildRouter()

	fmt.Println("Listening on", cfg.API.Addr)
	if err := http.ListenAndServe(cfg.API.Addr, r); err != nil {
		log.Fatal(err)
	}
}

func buildRouter() chi.Router {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	//---
	// Build the API routes
	//---
	r.Route("/api", func(r chi.Router) {
		// login
		r.Post("/login", Login)

		r.Route("/", func(r chi.Router) {
			// Seek, verify and validate JWT tokens
			r.Use(ValidateJWT)

			r.Get("/refresh_token", JWTRefresh)

			r.Get("/state", GetState)
			r.Get("/guidance", GetGuidance)
			r.Post("/engage", PostEngage)
			r.Post("/disengage", PostDisengage)
			r.Post("/reverse", PostReverse)
			r.Post("/sections", PostSections)
			r.Post("/machine", PostMachine)

			r.Get("/settings", GetSettings)
			r.Put("/settings", PutSettings)
			r.Put("/steer_module/settings", PutModuleSettings)
			r.Put("/steer_module/config", PutModuleConfig)

			r.Route("/tracks", func(r chi.Router) {
				r.Get("/", ListTracks)
				r.Post("/", CreateTrack)
				r.Get("/{id}", GetTrack)
				r.Delete("/{id}", DeleteTrack)
				r.Post("/{id}/activate", ActivateTrack)
				r.Post("/deactivate", DeactivateTrack)
				r.Post("/nudge", NudgeTrack)
			})
		})
	})

	// Add websocket routes
	r.Route("/ws", func(r chi.Router) {
		if !ENV.DEBUG {
			// Enable JWT validation in production
			r.Use(ValidateJWT)
		} else {
			fmt.Println("Running in debug mode. Authentication disabled.")
		}

		r.Get("/watch", WatchHandler)
	})

	// add static base routes
	FileServer(r, "/", http.Dir(ENV.HTMLDIR))

	return r
}

// runSimulator drives the fake vehicle on the real cycle period and loops
// its fixes and steer module feedback back into the pilot.
func runSimulator(veh *sim.Vehicle, p *pilot.Pilot) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	n := 0
	for range tick.C {
		fix := veh.Step(0.1)
		p.OnFix(&fix)

		// feedback arrives slower than fixes, like the real board
		n++
		if n%5 == 0 {
			var f pgn.Frame
			veh.FeedbackFrame(&f)
			p.OnDatagram(f.Bytes())
		}
	}
}

// runWatchdog forces the pilot safe whenever the fix feed goes quiet for
// longer than the configured timeout. Repeat firings keep the no-authority
// heartbeat flowing to the steer module until fixes return.
func runWatchdog(p *pilot.Pilot, settings *config.Store) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for range tick.C {
		last := p.LastFixAt()
		if last.IsZero() {
			continue // never had a fix, nothing engaged yet
		}
		cfg := settings.Snapshot()
		if time.Since(last) > cfg.WatchdogTimeout() {
			p.ForceSafeOutput()
		}
	}
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&User{}); err != nil {
		return nil, err
	}

	return
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	fs := http.StripPrefix(path, http.FileServer(root))

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	}))
}
