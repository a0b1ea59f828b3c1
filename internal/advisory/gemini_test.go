package advisory

import (
	"testing"

	"github.com/example/load-matching/internal/models"
)

func TestCleanJSONString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  \n```json{\"a\":1}```  ", "{\"a\":1}"},
		{"```json\n{\"optimized_price\": 742.5}\n```", "{\"optimized_price\": 742.5}"},
	}
	for _, c := range cases {
		if got := cleanJSONString(c.in); got != c.want {
			t.Fatalf("cleanJSONString(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestJoinRequirements(t *testing.T) {
	if got := joinRequirements[models.SpecialRequirement](nil); got != "none" {
		t.Fatalf("expected none, got %q", got)
	}
	reqs := []models.SpecialRequirement{models.ReqHazardous, models.ReqGPSTracking}
	if got := joinRequirements(reqs); got != "hazardous, gps_tracking" {
		t.Fatalf("unexpected join: %q", got)
	}
}
