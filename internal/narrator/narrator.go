// Package narrator is the only place the engine talks to an external
// language model. It turns a month's events into a short governor
// summary, with a hard timeout and a deterministic fallback, so the
// tick pipeline never depends on the model being reachable.
package narrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
)

// callTimeout bounds every model call. On expiry the fallback is used
// and the pipeline continues.
const callTimeout = 15 * time.Second

// maxSummaryEvents caps how many events are fed into the prompt.
const maxSummaryEvents = 5

// Narrator generates monthly summaries. With no API key it runs in
// fallback-only mode and is still fully functional.
type Narrator struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// New creates a narrator. An empty apiKey disables the model entirely.
func New(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Narrator, error) {
	n := &Narrator{
		model: model,
		log:   log.With().Str("component", "narrator").Logger(),
	}
	if apiKey == "" {
		n.log.Info().Msg("No API key configured, narrator running in fallback mode")
		return n, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	n.client = client
	n.log.Info().Str("model", model).Msg("Narrator initialized")
	return n, nil
}

// Close releases the model client.
func (n *Narrator) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

// Fallback is the deterministic summary used when the model is
// unavailable, slow, or unconfigured.
func Fallback(month int, eventCount int) string {
	return fmt.Sprintf("Month %d saw %d notable events in the network.", month, eventCount)
}

// MonthlySummary produces the governor summary for a committed month.
// It never returns an error: every failure path degrades to the
// deterministic fallback.
func (n *Narrator) MonthlySummary(ctx context.Context, month int, evts []*domain.NetworkEvent, state *market.State) string {
	if n.client == nil || len(evts) == 0 {
		return Fallback(month, len(evts))
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var sb strings.Builder
	for i, e := range evts {
		if i >= maxSummaryEvents {
			break
		}
		fmt.Fprintf(&sb, "- %s: %s\n", e.Title, e.Description)
	}

	prompt := fmt.Sprintf(`You are a financial news writer for a fractional property network newsletter.
Write a brief, engaging news summary (150-200 words) for Month %d of the simulation.

Key events this month:
%s
Economic state:
- Cycle phase: %s
- Market condition: %s
- Interest rate: %.2f%%
- Consumer confidence: %.0f/100
- Rental vacancy: %.1f%%

Write in a professional but accessible tone. Focus on what these events mean for
property investors in the Perth/WA market. End with a brief outlook.

Remember this is an educational simulation - frame insights as learning opportunities.
Do not use markdown formatting. Write as plain prose suitable for a newsletter.`,
		month, sb.String(), state.CyclePhase, state.Condition(),
		state.InterestRatePct, state.Confidence, state.VacancyPct)

	text, err := n.generate(callCtx, prompt)
	if err != nil {
		n.log.Warn().Err(err).Int("month", month).Msg("Summary generation failed, using fallback")
		return Fallback(month, len(evts))
	}
	return text
}

// GovernorChat answers a free-form question about the network on
// behalf of the governor persona. Unlike MonthlySummary this surfaces
// errors, since an interactive caller can retry.
func (n *Narrator) GovernorChat(ctx context.Context, question string, month int, state *market.State) (string, error) {
	if n.client == nil {
		return "", fmt.Errorf("narrator is not configured with an API key")
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prompt := fmt.Sprintf(`You are the governor of an educational fractional property investment network.
It is currently month %d. The market is in the %s phase with %s conditions.
Interest rate is %.2f%% and consumer confidence is %.0f/100.

A participant asks: %s

Answer helpfully in 2-4 sentences. This is an educational simulation, so frame
your answer as a learning opportunity. Never give real financial advice.`,
		month, state.CyclePhase, state.Condition(),
		state.InterestRatePct, state.Confidence, question)

	return n.generate(callCtx, prompt)
}

func (n *Narrator) generate(ctx context.Context, prompt string) (string, error) {
	model := n.client.GenerativeModel(n.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("model returned empty text")
	}
	return out, nil
}
