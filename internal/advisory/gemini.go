package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/example/load-matching/internal/pricing"
	"github.com/example/load-matching/internal/vehicle"
)

// GeminiAdvisor implements the price and vehicle advisory interfaces on
// Google's Gemini models. Callers treat every failure as "no advice".
type GeminiAdvisor struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiAdvisor initializes the Gemini client. apiKey comes from
// configuration, never hardcoded.
func NewGeminiAdvisor(ctx context.Context, apiKey string) (*GeminiAdvisor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-2.0-flash")
	// Force JSON responses for structured parsing.
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	return &GeminiAdvisor{client: client, model: model}, nil
}

func (g *GeminiAdvisor) Close() {
	g.client.Close()
}

// OptimizePrice asks the model for a market-adjusted price. The engine
// clamps the answer; this method only has to return a sane number.
func (g *GeminiAdvisor) OptimizePrice(ctx context.Context, req pricing.AdvisoryRequest) (float64, error) {
	prompt := fmt.Sprintf(`Role: You are the pricing analyst for a freight load-matching platform.
A deterministic algorithm priced this load at %.2f. Review the shipment facts and
return a market-adjusted price.

Shipment:
- Distance: %.1f km
- Weight: %.1f kg
- Volume: %.1f m3
- Load type: %s
- Special requirements: %s
- Pickup: %s
- Delivery: %s

Respond with JSON only, exactly: {"optimized_price": <number>}`,
		req.FinalPrice, req.DistanceKm, req.WeightKg, req.VolumeM3, req.LoadType,
		joinRequirements(req.Requirements), req.PickupTime.Format("2006-01-02 15:04 Mon"),
		req.DeliveryTime.Format("2006-01-02 15:04 Mon"))

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return 0, err
	}

	var result struct {
		OptimizedPrice float64 `json:"optimized_price"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return 0, fmt.Errorf("failed to parse price response: %w. Raw: %s", err, raw)
	}
	if result.OptimizedPrice <= 0 {
		return 0, fmt.Errorf("non-positive optimized price %f", result.OptimizedPrice)
	}
	return result.OptimizedPrice, nil
}

// RecommendVehicles asks the model for ranked vehicle classes. The matcher
// validates the list and falls back to its rule table when it is unusable.
func (g *GeminiAdvisor) RecommendVehicles(ctx context.Context, req vehicle.Request) ([]vehicle.Recommendation, error) {
	var dims string
	if req.Dimensions != nil {
		dims = fmt.Sprintf("%.1fx%.1fx%.1f m", req.Dimensions.LengthM, req.Dimensions.WidthM, req.Dimensions.HeightM)
	} else {
		dims = "unknown"
	}
	prompt := fmt.Sprintf(`Role: You are the fleet planner for a freight load-matching platform.
Recommend up to 3 vehicle classes for this shipment, best first.

Shipment:
- Weight: %.1f kg
- Volume: %.1f m3
- Dimensions: %s
- Load type: %s
- Special requirements: %s

Respond with JSON only, exactly:
{"recommendations": [{"vehicle_type": <string>, "suitability_score": <0-100 integer>,
"reason": <string>, "max_weight_kg": <number>, "estimated_cost": <number>}]}`,
		req.WeightKg, req.VolumeM3, dims, req.LoadType, joinRequirements(req.Requirements))

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result struct {
		Recommendations []vehicle.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse vehicle response: %w. Raw: %s", err, raw)
	}
	return result.Recommendations, nil
}

func (g *GeminiAdvisor) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return cleanJSONString(text.String()), nil
}

func joinRequirements[T ~string](reqs []T) string {
	if len(reqs) == 0 {
		return "none"
	}
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// cleanJSONString strips markdown code fences the model sometimes wraps
// around its JSON output.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
