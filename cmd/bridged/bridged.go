package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/canflyzhou/Stewart-Platform/internal/api"
	"github.com/canflyzhou/Stewart-Platform/internal/bridge"
	"github.com/canflyzhou/Stewart-Platform/internal/config"
	"github.com/canflyzhou/Stewart-Platform/internal/db"
	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
	"github.com/canflyzhou/Stewart-Platform/internal/serialmux"
	"github.com/canflyzhou/Stewart-Platform/internal/tracking"
	"github.com/canflyzhou/Stewart-Platform/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file (optional)")
	devMode    = flag.Bool("dev", false, "Run in dev mode: no serial port, replay frames from the fixture file")
	fixture    = flag.String("fixture", "fixtures.jsonl", "Tracking fixture to replay in dev mode")
	listenFlag = flag.String("listen", "", "Listen address (overrides config)")
	portFlag   = flag.String("port", "", "Serial port to use (overrides config)")
)

func loadConfig() *config.BridgeConfig {
	if *configPath == "" {
		return config.EmptyBridgeConfig()
	}
	cfg, err := config.LoadBridgeConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func loadGeometry(cfg *config.BridgeConfig) kinematics.Geometry {
	path := cfg.GetGeometryFile()
	if path == "" {
		return kinematics.DefaultGeometry()
	}
	geom, err := kinematics.LoadGeometry(path)
	if err != nil {
		log.Fatalf("failed to load geometry: %v", err)
	}
	return geom
}

func main() {
	flag.Parse()

	log.Printf("bridged %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := loadConfig()

	listen := cfg.GetListen()
	if *listenFlag != "" {
		listen = *listenFlag
	}
	serialPort := cfg.GetSerialPort()
	if *portFlag != "" {
		serialPort = *portFlag
	}

	solver, err := kinematics.NewSolver(loadGeometry(cfg))
	if err != nil {
		log.Fatalf("invalid platform geometry: %v", err)
	}

	var mux serialmux.SerialMuxInterface
	if *devMode || cfg.GetNoSerial() {
		log.Print("serial disabled: frames will be logged, not transmitted")
		mux = serialmux.NewDisabledSerialMux()
	} else {
		real, err := serialmux.NewRealSerialMux(serialPort, serialmux.PortOptions{
			BaudRate: cfg.GetBaudRate(),
		})
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", serialPort, err)
		}
		real.SetWriteTimeout(cfg.GetWriteTimeout())
		mux = real
	}
	defer mux.Close()

	database, err := db.NewDB(cfg.GetDBFile())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	streamer := bridge.NewStreamer(solver, mux, database, cfg.GetFrameSkipRate())
	sessionID := streamer.SessionID()
	if err := database.StartSession(sessionID); err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	defer func() {
		if err := database.EndSession(sessionID); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}()
	log.Printf("session %s started", sessionID)

	var source tracking.Source
	if *devMode {
		source = &tracking.ReplaySource{
			Path:     *fixture,
			Interval: 10 * time.Millisecond,
			Loop:     true,
		}
	} else {
		source = &tracking.UDPSource{Addr: cfg.GetTrackingListen()}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to firmware telemetry lines coming back over the link
	// and file them under the current session
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := mux.Subscribe()
		defer mux.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := serialmux.HandleTelemetry(database, sessionID, payload); err != nil {
					log.Printf("error handling telemetry: %v", err)
				}
			case <-ctx.Done():
				log.Printf("telemetry routine terminated")
				return
			}
		}
	}()

	// tracking source goroutine: drives the whole pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop() // a dead source ends the session
		if err := source.Run(ctx, streamer.HandleFrame); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tracking source stopped: %v", err)
		}
		log.Print("tracking routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := api.NewServer(mux, database, streamer.State).ServeMux()
		mux.AttachAdminRoutes(httpMux)
		database.AttachAdminRoutes(httpMux)

		server := &http.Server{
			Addr:    listen,
			Handler: api.LoggingMiddleware(httpMux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
