package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gogpu/gg"

	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/render"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

const storeTimeout = 2 * time.Second

type countEntry struct {
	key   string
	count int
}

type report struct {
	path       string
	label      string
	cells      int
	historyLen int
	firstAt    int64
	lastAt     int64
	colors     []countEntry
	labels     []countEntry
	recent     []grid.Placement
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, w io.Writer) error {
	cfg := config.Default()
	var top, recent int
	var pngPath string

	fs := flag.NewFlagSet("planet-report", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "path of the shared bbolt store")
	fs.IntVar(&cfg.GridSize, "grid", cfg.GridSize, "grid size in cells (N x N)")
	fs.IntVar(&cfg.CellSize, "cell", cfg.CellSize, "cell size in world pixels")
	fs.IntVar(&top, "top", 8, "rows in the colour and label tables")
	fs.IntVar(&recent, "recent", 10, "recent placements to list")
	fs.StringVar(&pngPath, "png", "", "also write the lit planet to this PNG file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if top <= 0 {
		return errors.New("-top must be > 0")
	}
	if recent < 0 {
		return errors.New("-recent must be >= 0")
	}
	if cfg.GridSize <= 0 || cfg.CellSize <= 0 {
		return fmt.Errorf("grid %d and cell %d must be > 0", cfg.GridSize, cfg.CellSize)
	}

	st, err := store.OpenBolt(cfg.StorePath, storeTimeout)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	snap, err := st.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	label, err := st.LoadLabel(ctx)
	if err != nil {
		return fmt.Errorf("load label: %w", err)
	}

	rep := buildReport(st.Path(), label, snap, top, recent)
	printReport(w, rep)

	if pngPath != "" {
		if err := exportPNG(cfg, snap, pngPath); err != nil {
			return fmt.Errorf("export png: %w", err)
		}
		fmt.Fprintf(w, "\npng=%s\n", pngPath)
	}
	return nil
}

func buildReport(path, label string, snap grid.Snapshot, top, recent int) report {
	rep := report{
		path:       path,
		label:      label,
		cells:      len(snap.Cells),
		historyLen: len(snap.History),
	}
	if rep.label == "" {
		rep.label = grid.AnonymousLabel
	}

	colors := map[string]int{}
	labels := map[string]int{}
	for _, px := range snap.Cells {
		colors[px.Color]++
		l := px.Label
		if l == "" {
			l = grid.AnonymousLabel
		}
		labels[l]++
	}
	rep.colors = topCounts(colors, top)
	rep.labels = topCounts(labels, top)

	if n := len(snap.History); n > 0 {
		rep.firstAt = snap.History[0].Timestamp
		rep.lastAt = snap.History[n-1].Timestamp
		start := max(0, n-recent)
		rep.recent = append([]grid.Placement(nil), snap.History[start:]...)
	}
	return rep
}

// topCounts returns the n largest entries, ties broken by key.
func topCounts(counts map[string]int, n int) []countEntry {
	out := make([]countEntry, 0, len(counts))
	for k, c := range counts {
		out = append(out, countEntry{key: k, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func printReport(w io.Writer, rep report) {
	fmt.Fprintf(w, "=== Pixel Planet Report ===\n")
	fmt.Fprintf(w, "store=%s label=%s\n\n", rep.path, rep.label)

	fmt.Fprintf(w, "cells=%d history=%d\n", rep.cells, rep.historyLen)
	fmt.Fprintf(w, "first_placement=%s last_placement=%s\n", formatMillis(rep.firstAt), formatMillis(rep.lastAt))

	fmt.Fprintf(w, "\n--- Colours ---\n")
	printCounts(w, rep.colors, rep.cells)
	fmt.Fprintf(w, "\n--- Labels ---\n")
	printCounts(w, rep.labels, rep.cells)

	fmt.Fprintf(w, "\n--- Recent ---\n")
	if len(rep.recent) == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}
	for i := len(rep.recent) - 1; i >= 0; i-- {
		p := rep.recent[i]
		fmt.Fprintf(w, "  %s  %s %s at %d,%d\n", formatMillis(p.Timestamp), labelOrAnon(p.Label), p.Color, p.X, p.Y)
	}
}

func printCounts(w io.Writer, rows []countEntry, total int) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "  (none)\n")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-12s %5d  (%.1f%%)\n", r.key, r.count, 100*float64(r.count)/float64(total))
	}
}

func labelOrAnon(l string) string {
	if strings.TrimSpace(l) == "" {
		return grid.AnonymousLabel
	}
	return l
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "n/a"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// exportPNG renders the planet with the frame compositor, lights it at
// rotation zero and frames it in an atmospheric halo.
func exportPNG(cfg config.Config, snap grid.Snapshot, path string) error {
	engine := render.NewEngine(render.Options{
		Planet:            cfg.Planet(),
		AngularRate:       cfg.AngularRate(),
		AnimationDuration: cfg.AnimationDuration,
	})
	model := grid.New(cfg.GridSize, max(cfg.HistoryCap, len(snap.History)))
	model.RestoreSnapshot(snap)
	img := engine.Render(model)

	d := float64(engine.Diameter())
	margin := d / 8
	size := int(d + 2*margin)
	c := size / 2

	dc := gg.NewContext(size, size)
	defer dc.Close()
	dc.ClearWithColor(gg.RGB(4.0/255, 6.0/255, 14.0/255))

	halo := gg.NewRadialGradientBrush(float64(c), float64(c), d/2, d/2+margin).
		AddColorStop(0, gg.RGBA2(0.35, 0.55, 1, 0.45)).
		AddColorStop(1, gg.RGBA2(0.35, 0.55, 1, 0))
	dc.SetFillBrush(halo)
	dc.DrawCircle(float64(c), float64(c), d/2+margin)
	if err := dc.Fill(); err != nil {
		return err
	}

	dc.DrawImage(gg.ImageBufFromImage(img), margin, margin)
	return dc.SavePNG(path)
}
