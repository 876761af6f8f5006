package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/turret.aim/internal/config"
	"github.com/banshee-data/turret.aim/internal/db"
	"github.com/banshee-data/turret.aim/internal/detect"
	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/monitoring"
	"github.com/banshee-data/turret.aim/internal/resolve"
	"github.com/banshee-data/turret.aim/internal/spatial"
	"github.com/banshee-data/turret.aim/internal/telemetry"
	"github.com/banshee-data/turret.aim/internal/timeutil"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file (defaults apply if empty)")
	devMode    = flag.Bool("dev", false, "Run with a synthetic telemetry source instead of the serial port")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
)

// telemetryDecimation keeps one in N accepted telemetry messages for the
// session log.
const telemetryDecimation = 20

func main() {
	flag.Parse()

	cfg := config.EmptyTurretConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTurretConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	addr := cfg.GetListenAddr()
	if *listen != "" {
		addr = *listen
	}

	buffers, err := telemetry.NewBuffers(history.Config{
		MaxEntries: cfg.GetBufferMaxEntries(),
		MaxAge:     cfg.GetBufferMaxAge(),
		Tolerance:  cfg.GetBufferTolerance(),
	})
	if err != nil {
		log.Fatalf("Failed to create telemetry buffers: %v", err)
	}
	composer := spatial.NewComposer(cfg.GetCalibration(), buffers.Yaw, buffers.Pitch, buffers.Odom)

	var port telemetry.Port
	if *devMode {
		log.Print("[Main] dev mode: using synthetic telemetry")
		port = telemetry.NewMockPort(5 * time.Millisecond)
	} else {
		port, err = telemetry.OpenPort(cfg.GetSerialPort(), telemetry.PortOptions{BaudRate: cfg.GetBaudRate()})
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
	}
	mux := telemetry.NewMux(port)
	defer mux.Close()

	database, err := db.Open(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	teamColor := detect.TeamColor(cfg.GetTeamColor())
	session, err := database.NewSession(string(teamColor))
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("[Main] session %s, team %s", session.ID, teamColor)

	metrics := monitoring.Default
	rate := monitoring.NewUpdateRateMonitor(timeutil.RealClock{})

	ingestor := telemetry.NewIngestor(buffers, cfg.GetTelemetryOffset(), metrics, rate)
	ingestor.Sink = database.TelemetrySink(session.ID, telemetryDecimation)

	intrinsics := resolve.CameraIntrinsics{
		Fx: cfg.GetCameraFx(), Fy: cfg.GetCameraFy(),
		Cx: cfg.GetCameraCx(), Cy: cfg.GetCameraCy(),
	}
	var depth resolve.DepthSource = resolve.FixedDepth(cfg.GetDefaultDepthMeters())
	if cfg.PlateWidthMeters != nil {
		depth = resolve.PlateDepth{Intrinsics: intrinsics, PlateWidth: cfg.GetPlateWidthMeters()}
	}
	detector := detect.NewFiducialDetector(teamColor, detect.DefaultFiducialConfig())
	resolver, err := resolve.NewResolver(detector, composer, intrinsics, depth,
		resolve.Config{
			OwnColor:     teamColor,
			IoUThreshold: cfg.GetDedupIoUThreshold(),
			Prune: detect.PruneConfig{
				MinWidth:  cfg.GetPruneMinWidth(),
				MinHeight: cfg.GetPruneMinHeight(),
			},
		}, metrics)
	if err != nil {
		log.Fatalf("Failed to create resolver: %v", err)
	}
	resolver.DropReporter = func(ts history.Micros, reason string, count int) {
		if err := database.RecordDrop(session.ID, ts, reason, count); err != nil {
			monitoring.Logf("[DB] record drop: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// serial reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("[Main] serial monitor failed: %v", err)
			stop()
		}
		log.Print("[Main] monitor routine terminated")
	}()

	// telemetry ingest
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingestor.Run(ctx, mux); err != nil && err != context.Canceled {
			log.Printf("[Main] telemetry ingest failed: %v", err)
		}
		log.Print("[Main] ingest routine terminated")
	}()

	// cadence watchdog
	wg.Add(1)
	go func() {
		defer wg.Done()
		rate.Watch(ctx, "telemetry", 10*time.Second)
	}()

	// HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    addr,
			Handler: NewServer(database, composer, resolver, intrinsics, buffers, session, metrics).Handler(),
		}

		go func() {
			log.Printf("[Main] listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Print("[Main] HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
