package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"studyplanner-backend/internal/models"
)

// AIScheduler proposes a schedule as free text. The orchestrator treats the reply as untrusted.
type AIScheduler interface {
	SuggestSchedule(ctx context.Context, sc ScheduleContext) (string, error)
}

type GeminiScheduler struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
	log      *zap.Logger
}

func NewGeminiScheduler(apiKey, modelName string, concurrentReqs int, log *zap.Logger) (*GeminiScheduler, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.SetTopP(0.95)

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiScheduler{
		client:   client,
		model:    model,
		rateChan: rateChan,
		log:      log,
	}, nil
}

func (g *GeminiScheduler) Close() {
	g.client.Close()
}

// acquireRate blocks until a request slot frees up or ctx ends.
func (g *GeminiScheduler) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GeminiScheduler) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiScheduler) SuggestSchedule(ctx context.Context, sc ScheduleContext) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildSchedulePrompt(sc)))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.log.Warn("gemini candidate stopped early",
				zap.Int("candidate", i),
				zap.String("finish_reason", cand.FinishReason.String()),
			)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini returned an empty response")
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func buildSchedulePrompt(sc ScheduleContext) string {
	var b strings.Builder
	pref := sc.Preferences

	b.WriteString("You are a study planner. Build a study schedule for one student.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")

	b.WriteString("STUDY PREFERENCES:\n")
	days := make([]string, 0, len(pref.PreferredDays))
	for _, d := range pref.PreferredDays {
		days = append(days, d.String())
	}
	parts := make([]string, 0, len(pref.PreferredDayParts))
	for _, p := range pref.PreferredDayParts {
		start, end, _ := p.Bounds()
		parts = append(parts, fmt.Sprintf("%s (%s-%s)", p, start, end))
	}
	b.WriteString(fmt.Sprintf("- Available days: %s\n", strings.Join(days, ", ")))
	b.WriteString(fmt.Sprintf("- Preferred times of day: %s\n", strings.Join(parts, ", ")))
	b.WriteString(fmt.Sprintf("- Session duration: %d minutes, break between sessions: %d minutes\n",
		pref.SessionDuration, pref.BreakDuration))
	b.WriteString(fmt.Sprintf("- At least %d sessions per week\n", pref.MinSessionsPerWeek))
	for _, ex := range pref.ExcludedTimes {
		if ex.AllDay {
			b.WriteString(fmt.Sprintf("- Never on %s\n", ex.Weekday))
		} else {
			b.WriteString(fmt.Sprintf("- Never on %s between %s and %s\n", ex.Weekday, ex.Start, ex.End))
		}
	}

	b.WriteString("\nMODULES (use these ids verbatim):\n")
	ratings := feedbackByModule(sc.History)
	for _, m := range sc.Modules {
		line := fmt.Sprintf("- module_id: %s, name: %s, credits: %d", m.ID, m.Name, m.EffectiveCredits())
		if m.Difficulty != nil {
			line += fmt.Sprintf(", difficulty: %d/5", *m.Difficulty)
		}
		if len(m.AssessmentDates) > 0 {
			dates := make([]string, 0, len(m.AssessmentDates))
			for _, d := range m.AssessmentDates {
				dates = append(dates, d.Format(models.DateLayout))
			}
			line += ", assessments on " + strings.Join(dates, ", ")
		}
		if r, ok := ratings[m.ID.String()]; ok {
			line += fmt.Sprintf(", past productivity %.1f/5 over %d sessions", r.avg(), r.count)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nEXISTING CALENDAR COMMITMENTS (do not overlap):\n")
	if len(sc.Busy) == 0 {
		b.WriteString("- none\n")
	}
	for _, ev := range sc.Busy {
		date := ev.Date.Format(models.DateLayout)
		if ev.BlocksWholeDay() {
			b.WriteString(fmt.Sprintf("- %s all day\n", date))
		} else {
			b.WriteString(fmt.Sprintf("- %s %s-%s\n", date, *ev.Start, *ev.End))
		}
	}

	b.WriteString(fmt.Sprintf("\nSCHEDULING PERIOD: %s to %s (inclusive)\n",
		sc.StartDate.Format(models.DateLayout), sc.EndDate.AddDate(0, 0, -1).Format(models.DateLayout)))

	b.WriteString(`
Give more sessions to higher-credit and harder modules, prepare for upcoming assessments,
spread sessions of the same module apart and schedule demanding modules in the time of day
where past productivity was highest.

JSON schema per session:
{"module_id": "string", "date": "YYYY-MM-DD", "start_time": "HH:MM", "end_time": "HH:MM", "title": "string"}
`)

	return b.String()
}

type ratingAcc struct {
	sum, count int
}

func (r ratingAcc) avg() float64 {
	if r.count == 0 {
		return 0
	}
	return float64(r.sum) / float64(r.count)
}

// feedbackByModule averages productivity ratings of past sessions, keyed by module id.
func feedbackByModule(history []*models.StudySession) map[string]ratingAcc {
	out := map[string]ratingAcc{}
	for _, s := range history {
		if s.Feedback == nil || s.Feedback.Productivity == 0 {
			continue
		}
		acc := out[s.ModuleID.String()]
		acc.sum += s.Feedback.Productivity
		acc.count++
		out[s.ModuleID.String()] = acc
	}
	return out
}

// withAITimeout bounds a single AI call.
func withAITimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 20 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
