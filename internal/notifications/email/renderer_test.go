package email

import (
	"strings"
	"testing"

	"tripgenie/internal/types"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("https://app.tripgenie.example")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestRender_CriticalSubjectAndStyling(t *testing.T) {
	r := newTestRenderer(t)

	n := &types.Notification{
		Destination: "Reykjavik",
		Message:     "Severe storm expected during your stay.",
		Severity:    types.SeverityCritical,
	}

	out, err := r.Render("Ada", n)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if out.Subject != "Critical Travel Alert: Reykjavik" {
		t.Errorf("subject = %q", out.Subject)
	}
	if !strings.Contains(out.BodyHTML, "Hi Ada,") {
		t.Error("body missing greeting")
	}
	if !strings.Contains(out.BodyHTML, "Reykjavik") {
		t.Error("body missing destination")
	}
	if !strings.Contains(out.BodyHTML, n.Message) {
		t.Error("body missing alert message")
	}
	if !strings.Contains(out.BodyHTML, "#ef4444") {
		t.Error("body missing critical accent color")
	}
	if !strings.Contains(out.BodyHTML, "https://app.tripgenie.example/watchlist") {
		t.Error("body missing dashboard link")
	}
}

func TestRender_WarningSubject(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("Ada", &types.Notification{
		Destination: "Porto",
		Severity:    types.SeverityWarning,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Subject != "Weather Warning: Porto" {
		t.Errorf("subject = %q", out.Subject)
	}
	if !strings.Contains(out.BodyHTML, "#eab308") {
		t.Error("body missing warning accent color")
	}
}

func TestRender_UnknownSeverityFallsBack(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("Ada", &types.Notification{
		Destination: "Porto",
		Severity:    types.SeverityInfo,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Subject != "Travel Alert: Porto" {
		t.Errorf("subject = %q, want the neutral fallback label", out.Subject)
	}
}

func TestRender_EmptyUserName(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("", &types.Notification{
		Destination: "Porto",
		Severity:    types.SeverityWarning,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.BodyHTML, "Hi Traveller,") {
		t.Error("empty user name should render as Traveller")
	}
}

func TestRender_ReplanSectionOnlyWhenPresent(t *testing.T) {
	r := newTestRenderer(t)

	const marker = "Your Trip Has Been Replanned"

	without, err := r.Render("Ada", &types.Notification{
		Destination: "Porto",
		Severity:    types.SeverityCritical,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(without.BodyHTML, marker) {
		t.Error("replan section rendered without a replanned itinerary")
	}

	with, err := r.Render("Ada", &types.Notification{
		Destination:        "Porto",
		Severity:           types.SeverityCritical,
		ReplannedItinerary: "Day 1: indoor plans.",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(with.BodyHTML, marker) {
		t.Error("replan section missing when a replanned itinerary exists")
	}
}
