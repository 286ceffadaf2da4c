package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jhsu22/droplet-analyzer/internal/export"
	"github.com/jhsu22/droplet-analyzer/internal/profile"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

func TestProfileRendersHTML(t *testing.T) {
	entries := []profile.Entry{
		{AngleDegrees: 0, DistancePhysical: 1.2, Row: 100, Col: 185},
		{AngleDegrees: 90, DistancePhysical: 1.1, Row: 15, Col: 100},
		{AngleDegrees: 180, DistancePhysical: 0, Row: 100, Col: 98, Excluded: true},
	}

	var buf bytes.Buffer
	if err := Profile(&buf, 42, entries); err != nil {
		t.Fatalf("Profile: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "echarts") {
		t.Error("output does not embed echarts")
	}
	if !strings.Contains(out, "frame=42") {
		t.Error("output missing frame subtitle")
	}
	if !strings.Contains(out, "masked") {
		t.Error("output missing masked series")
	}
}

func TestRadiusTrendRendersHTML(t *testing.T) {
	frames := []export.FrameRecord{
		{FrameNumber: 5, Fit: export.FitMetadata{Center: geometry.Point2D{X: 100, Y: 100}, Radius: 85.0, Residual: 0.4}},
		{FrameNumber: 6, Fit: export.FitMetadata{Center: geometry.Point2D{X: 100, Y: 101}, Radius: 84.7, Residual: 0.5}},
	}

	var buf bytes.Buffer
	if err := RadiusTrend(&buf, frames); err != nil {
		t.Fatalf("RadiusTrend: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Fitted Radius") {
		t.Error("output missing chart title")
	}
	if !strings.Contains(out, "radius") {
		t.Error("output missing radius series")
	}
}
