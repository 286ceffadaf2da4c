// Package report renders interactive HTML charts from analysis results.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/jhsu22/droplet-analyzer/internal/export"
	"github.com/jhsu22/droplet-analyzer/internal/profile"
)

// Profile renders an angle versus distance scatter for a single frame.
// Masked entries are drawn as a separate series so gaps near the needle
// are visible rather than collapsing onto the axis.
func Profile(w io.Writer, frameNumber int, entries []profile.Entry) error {
	kept := make([]opts.ScatterData, 0, len(entries))
	masked := make([]opts.ScatterData, 0)
	for _, e := range entries {
		v := []interface{}{e.AngleDegrees, e.DistancePhysical}
		if e.Excluded {
			masked = append(masked, opts.ScatterData{Value: v})
			continue
		}
		kept = append(kept, opts.ScatterData{Value: v})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Droplet Profile", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Boundary Profile", Subtitle: fmt.Sprintf("frame=%d points=%d masked=%d", frameNumber, len(entries), len(masked))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 360, Name: "Angle (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("boundary", kept, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	if len(masked) > 0 {
		scatter.AddSeries("masked", masked, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render profile chart: %w", err)
	}
	return nil
}

// RadiusTrend renders fitted radius and residual across the run so drift
// in droplet size shows up at a glance.
func RadiusTrend(w io.Writer, frames []export.FrameRecord) error {
	x := make([]int, 0, len(frames))
	radii := make([]opts.LineData, 0, len(frames))
	residuals := make([]opts.LineData, 0, len(frames))
	for _, f := range frames {
		x = append(x, f.FrameNumber)
		radii = append(radii, opts.LineData{Value: f.Fit.Radius})
		residuals = append(residuals, opts.LineData{Value: f.Fit.Residual})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Radius Trend", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fitted Radius", Subtitle: fmt.Sprintf("frames=%d", len(frames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Radius (px)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("radius", radii).
		AddSeries("residual", residuals)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render radius chart: %w", err)
	}
	return nil
}
