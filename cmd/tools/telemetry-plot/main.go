// telemetry-plot renders a recorded session's yaw and pitch traces to
// PNG files for post-match review.
//
// Usage:
//
//	telemetry-plot -db turret.db [-session <id>] [-out plots]
//
// Without -session the most recent session is plotted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/turret.aim/internal/db"
)

func main() {
	dbPath := flag.String("db", "turret.db", "Path to the session database")
	sessionID := flag.String("session", "", "Session ID to plot (default: most recent)")
	outDir := flag.String("out", "plots", "Output directory for PNG files")
	flag.Parse()

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	id := *sessionID
	if id == "" {
		sessions, err := database.Sessions()
		if err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("No sessions recorded")
		}
		id = sessions[0].ID
		log.Printf("Plotting most recent session %s (team %s, started %s)",
			id, sessions[0].TeamColor, sessions[0].StartedAt.Format("2006-01-02 15:04:05"))
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	for _, kind := range []string{"yaw", "pitch"} {
		trace, err := database.AngleTrace(id, kind)
		if err != nil {
			log.Fatalf("Failed to load %s trace: %v", kind, err)
		}
		if len(trace) == 0 {
			log.Printf("No %s samples for session %s, skipping", kind, id)
			continue
		}
		out := filepath.Join(*outDir, fmt.Sprintf("%s_%s.png", id, kind))
		if err := savePlot(kind, trace, out); err != nil {
			log.Fatalf("Failed to plot %s trace: %v", kind, err)
		}
		log.Printf("Wrote %s (%d samples)", out, len(trace))
	}
}

// savePlot renders one joint-angle trace against time since the first
// sample.
func savePlot(kind string, trace []db.TelemetrySample, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Turret %s", kind)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (rad)"

	t0 := trace[0].Timestamp
	pts := make(plotter.XYs, len(trace))
	for i, s := range trace {
		pts[i] = plotter.XY{X: s.Timestamp.Sub(t0).Seconds(), Y: s.Angle}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
