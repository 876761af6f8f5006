package main

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/turret.aim/internal/db"
	"github.com/banshee-data/turret.aim/internal/geom"
	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/httputil"
	"github.com/banshee-data/turret.aim/internal/monitoring"
	"github.com/banshee-data/turret.aim/internal/resolve"
	"github.com/banshee-data/turret.aim/internal/spatial"
	"github.com/banshee-data/turret.aim/internal/telemetry"
	"github.com/banshee-data/turret.aim/internal/version"
)

// Server exposes the aiming pipeline over HTTP: status and history for
// the pit crew, a resolve endpoint for offline captures, and Prometheus
// metrics.
type Server struct {
	db         *db.DB
	composer   *spatial.Composer
	resolver   *resolve.Resolver
	intrinsics resolve.CameraIntrinsics
	buffers    telemetry.Buffers
	session    db.Session
	metrics    *monitoring.Metrics
	startedAt  time.Time
}

func NewServer(database *db.DB, composer *spatial.Composer, resolver *resolve.Resolver,
	intrinsics resolve.CameraIntrinsics, buffers telemetry.Buffers,
	session db.Session, metrics *monitoring.Metrics) *Server {
	return &Server{
		db:         database,
		composer:   composer,
		resolver:   resolver,
		intrinsics: intrinsics,
		buffers:    buffers,
		session:    session,
		metrics:    metrics,
		startedAt:  time.Now(),
	}
}

// Handler returns the server's route table wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/detections/recent", s.handleRecentDetections)
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/aim", s.handleAim)
	mux.Handle("/metrics", s.metrics.Handler())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("got request %q", r.URL.Path)
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "version": version.Version})
}

type bufferStatus struct {
	Len      int   `json:"len"`
	LatestUs int64 `json:"latest_us,omitempty"`
}

func (s *Server) bufferStatus(length int, latest history.Micros, ok bool) bufferStatus {
	st := bufferStatus{Len: length}
	if ok {
		st.LatestUs = int64(latest)
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	yawTS, yawOK := s.buffers.Yaw.Latest()
	pitchTS, pitchOK := s.buffers.Pitch.Latest()
	odomTS, odomOK := s.buffers.Odom.Latest()

	detections, err := s.db.CountDetections(s.session.ID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"session":            s.session,
		"uptime_sec":         int(time.Since(s.startedAt).Seconds()),
		"detections":         detections,
		"yaw_buffer":         s.bufferStatus(s.buffers.Yaw.Len(), yawTS, yawOK),
		"pitch_buffer":       s.bufferStatus(s.buffers.Pitch.Len(), pitchTS, pitchOK),
		"odom_buffer":        s.bufferStatus(s.buffers.Odom.Len(), odomTS, odomOK),
		"parse_errors":       s.metrics.TelemetryParseErrors.Load(),
		"stale_samples":      s.metrics.TelemetryOutOfOrder.Load(),
		"detections_dropped": s.metrics.DetectionsDropped.Load(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessions, err := s.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) handleRecentDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			httputil.BadRequest(w, "limit must be an integer in [1, 1000]")
			return
		}
		limit = n
	}
	detections, err := s.db.RecentDetections(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, detections)
}

type resolvedTarget struct {
	Confidence float64 `json:"confidence"`
	Color      string  `json:"color"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
}

// handleResolve runs the full detection pipeline on an uploaded capture:
// the request body is a PNG or JPEG image, ts_us its exposure timestamp.
// Resolved targets are persisted to the session and returned.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	ts, err := strconv.ParseInt(r.URL.Query().Get("ts_us"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "ts_us must be an integer timestamp in microseconds")
		return
	}

	img, _, err := image.Decode(r.Body)
	if err != nil {
		httputil.BadRequest(w, "request body must be a PNG or JPEG image")
		return
	}

	targets, err := s.resolver.Resolve(r.Context(), []resolve.Capture{
		{Image: img, Timestamp: history.Micros(ts)},
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	if err := s.db.RecordDetections(s.session.ID, history.Micros(ts), targets); err != nil {
		log.Printf("[Server] failed to persist detections: %v", err)
	}

	out := make([]resolvedTarget, 0, len(targets))
	for _, t := range targets {
		out = append(out, resolvedTarget{
			Confidence: t.Confidence,
			Color:      string(t.Color),
			X:          t.Position.X,
			Y:          t.Position.Y,
			Z:          t.Position.Z,
		})
	}
	httputil.WriteJSONOK(w, out)
}

// handleAim back-projects one image point at a given timestamp and
// returns its world-frame position. Used to sanity-check calibration
// against a tape measure.
func (s *Server) handleAim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()

	ts, err := strconv.ParseInt(q.Get("ts_us"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "ts_us must be an integer timestamp in microseconds")
		return
	}
	x, err := strconv.ParseFloat(q.Get("x"), 64)
	if err != nil {
		httputil.BadRequest(w, "x must be an image-plane coordinate")
		return
	}
	y, err := strconv.ParseFloat(q.Get("y"), 64)
	if err != nil {
		httputil.BadRequest(w, "y must be an image-plane coordinate")
		return
	}
	depth := 3.0
	if v := q.Get("depth"); v != "" {
		depth, err = strconv.ParseFloat(v, 64)
		if err != nil || depth <= 0 {
			httputil.BadRequest(w, "depth must be a positive distance in meters")
			return
		}
	}

	camToWorld, err := s.composer.CameraToWorld(history.Micros(ts))
	if err != nil {
		if errors.Is(err, spatial.ErrPoseUnavailable) {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}

	cam := s.intrinsics.BackProject(geom.Point[geom.ImageFrame]{X: x, Y: y}, depth)
	world := camToWorld.Apply(cam)
	httputil.WriteJSONOK(w, map[string]float64{"x": world.X, "y": world.Y, "z": world.Z})
}
