package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/printops/mps-console/internal/domain"
)

var ErrDraftIncomplete = errors.New("draft needs a name and at least one action")

// Conflict names an existing policy whose action set overlaps the
// draft's with the opposite effect. It is an early warning for the
// DENY-overrides-ALLOW precedence the backend applies at evaluation
// time.
type Conflict struct {
	PolicyID           string        `json:"policy_id"`
	PolicyName         string        `json:"policy_name"`
	Effect             domain.Effect `json:"effect"`
	OverlappingActions []string      `json:"overlapping_actions"`
}

// TestScenario is a suggested preview evaluation for the draft.
type TestScenario struct {
	Name           string        `json:"name"`
	Action         string        `json:"action"`
	ExpectedEffect domain.Effect `json:"expected_effect"`
}

// AnalysisResult is the assistant's advisory verdict on a draft. It
// never blocks saving; SafeToCreate false only means "look again".
type AnalysisResult struct {
	Summary         string         `json:"summary"`
	SafeToCreate    bool           `json:"safe_to_create"`
	Conflicts       []Conflict     `json:"conflicts"`
	Warnings        []string       `json:"warnings"`
	Recommendations []string       `json:"recommendations"`
	TestScenarios   []TestScenario `json:"test_scenarios"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
}

// Assistant runs debounced draft analysis. Every submission for a key
// (one key per authoring user) resets that key's timer; analysis runs
// only after the draft has been quiet for the debounce window, so a
// user typing in the editor does not trigger a storm of scans.
type Assistant struct {
	policies  *PolicyService
	debounce  time.Duration
	resultTTL time.Duration

	mu        sync.Mutex
	timers    map[string]*time.Timer
	results   map[string]*AnalysisResult
	evictions map[string]*time.Timer
}

func NewAssistant(policies *PolicyService, debounce time.Duration) *Assistant {
	if debounce == 0 {
		debounce = 2 * time.Second
	}
	return &Assistant{
		policies:  policies,
		debounce:  debounce,
		resultTTL: 10 * time.Minute,
		timers:    make(map[string]*time.Timer),
		results:   make(map[string]*AnalysisResult),
		evictions: make(map[string]*time.Timer),
	}
}

// Submit schedules analysis of the draft after the debounce window,
// cancelling any timer already pending for the key.
func (a *Assistant) Submit(key string, draft *domain.Policy) error {
	if draft.Name == "" || len(draft.Actions) == 0 {
		return ErrDraftIncomplete
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if timer, ok := a.timers[key]; ok {
		timer.Stop()
	}
	a.timers[key] = time.AfterFunc(a.debounce, func() {
		// Detached from the submitting request on purpose: the caller
		// polls for the result later.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		result, err := a.Analyze(ctx, draft)
		if err != nil {
			log.Printf("[ASSISTANT] analysis for %s failed: %v", key, err)
			return
		}

		a.mu.Lock()
		a.results[key] = result
		delete(a.timers, key)
		a.scheduleEviction(key, result)
		a.mu.Unlock()
	})

	return nil
}

// scheduleEviction drops the stored result after the TTL so abandoned
// drafts do not accumulate for the process lifetime. A newer result for
// the key re-arms the timer. Caller holds a.mu.
func (a *Assistant) scheduleEviction(key string, result *AnalysisResult) {
	if timer, ok := a.evictions[key]; ok {
		timer.Stop()
	}
	a.evictions[key] = time.AfterFunc(a.resultTTL, func() {
		a.mu.Lock()
		if a.results[key] == result {
			delete(a.results, key)
			delete(a.evictions, key)
		}
		a.mu.Unlock()
	})
}

// Result returns the latest finished analysis for the key, if any.
func (a *Assistant) Result(key string) (*AnalysisResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	result, ok := a.results[key]
	return result, ok
}

// Analyze inspects the draft against the existing catalog immediately.
func (a *Assistant) Analyze(ctx context.Context, draft *domain.Policy) (*AnalysisResult, error) {
	if draft.Name == "" || len(draft.Actions) == 0 {
		return nil, ErrDraftIncomplete
	}

	// A global draft overlaps every customer scope, so the scan needs
	// the whole catalog; a scoped draft only competes with its own
	// customer's policies and the globals.
	var existing []*domain.Policy
	var err error
	if draft.CustomerID == nil {
		existing, err = a.policies.ListAll(ctx)
	} else {
		existing, err = a.policies.List(ctx, draft.CustomerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load existing policies: %w", err)
	}

	result := &AnalysisResult{
		Conflicts:       []Conflict{},
		Warnings:        []string{},
		Recommendations: []string{},
		AnalyzedAt:      time.Now(),
	}

	for _, policy := range existing {
		if policy.ID == draft.ID {
			continue
		}
		if !policy.SameScope(draft) {
			continue
		}
		if policy.Effect == draft.Effect {
			if policy.Name == draft.Name {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("a policy named %q already exists in this scope", draft.Name))
			}
			continue
		}

		overlap := draft.OverlapsActions(policy)
		if len(overlap) == 0 {
			continue
		}
		sort.Strings(overlap)
		result.Conflicts = append(result.Conflicts, Conflict{
			PolicyID:           policy.ID.String(),
			PolicyName:         policy.Name,
			Effect:             policy.Effect,
			OverlappingActions: overlap,
		})
	}

	a.addWarnings(draft, result)
	a.addRecommendations(draft, result)
	a.addTestScenarios(draft, result)

	result.SafeToCreate = len(result.Conflicts) == 0
	result.Summary = a.summarize(draft, result)

	return result, nil
}

func (a *Assistant) addWarnings(draft *domain.Policy, result *AnalysisResult) {
	if draft.Effect == domain.EffectAllow && draft.Conditions == nil &&
		len(draft.Subject.Attributes) == 0 && len(draft.Resource.Attributes) == 0 {
		result.Warnings = append(result.Warnings,
			"ALLOW with no subject, resource or condition constraints grants the actions to everyone")
	}
	if draft.HasAction("*") {
		result.Warnings = append(result.Warnings,
			"wildcard action covers every current and future action")
	}
}

func (a *Assistant) addRecommendations(draft *domain.Policy, result *AnalysisResult) {
	if len(result.Conflicts) > 0 {
		result.Recommendations = append(result.Recommendations,
			"narrow the overlapping actions or scope: DENY always wins over ALLOW for the same triple")
	}
	if draft.CustomerID == nil && draft.Effect == domain.EffectAllow {
		result.Recommendations = append(result.Recommendations,
			"global ALLOW policies apply to every customer; consider scoping to one customer")
	}
}

func (a *Assistant) addTestScenarios(draft *domain.Policy, result *AnalysisResult) {
	for _, action := range draft.Actions {
		expected := draft.Effect
		for _, conflict := range result.Conflicts {
			if conflict.Effect == domain.EffectDeny {
				for _, overlapped := range conflict.OverlappingActions {
					if overlapped == action {
						// The existing DENY would win.
						expected = domain.EffectDeny
					}
				}
			}
		}
		result.TestScenarios = append(result.TestScenarios, TestScenario{
			Name:           fmt.Sprintf("matching subject performs %q", action),
			Action:         action,
			ExpectedEffect: expected,
		})
	}
}

func (a *Assistant) summarize(draft *domain.Policy, result *AnalysisResult) string {
	scope := "all customers"
	if draft.CustomerID != nil {
		scope = "one customer"
	}
	if len(result.Conflicts) > 0 {
		return fmt.Sprintf("%s policy %q covers %d action(s) for %s with %d conflicting policy(ies)",
			draft.Effect, draft.Name, len(draft.Actions), scope, len(result.Conflicts))
	}
	return fmt.Sprintf("%s policy %q covers %d action(s) for %s with no conflicts detected",
		draft.Effect, draft.Name, len(draft.Actions), scope)
}
