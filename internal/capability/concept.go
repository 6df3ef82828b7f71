package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/market"
)

// ConceptSelectionNode picks candidate sector/concept groups for the request
// from the provider's concept list and shares them as a fact for downstream
// steps (leading-stock identification, overlap analysis).
type ConceptSelectionNode struct {
	concepts market.ConceptProvider
	maxPick  int
}

func NewConceptSelectionNode(concepts market.ConceptProvider) *ConceptSelectionNode {
	return &ConceptSelectionNode{concepts: concepts, maxPick: 5}
}

func (n *ConceptSelectionNode) Name() string { return "concept_selection" }

func (n *ConceptSelectionNode) Description() string {
	return "Select sector/concept groups relevant to the request"
}

func (n *ConceptSelectionNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	all, err := n.concepts.ListConcepts(ctx)
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("concept_selection: list concepts: %w", err)}
	}
	if len(all) == 0 {
		return engine.Outcome{Err: fmt.Errorf("concept_selection: provider returned no concepts")}
	}

	selected := matchConcepts(all, step.Description+" "+st.UserInput, n.maxPick)
	if len(selected) == 0 {
		return engine.Outcome{Err: fmt.Errorf("concept_selection: no concept matches request %q", step.Description)}
	}

	names := make([]string, 0, len(selected))
	for _, c := range selected {
		names = append(names, c.Name)
	}

	payload, err := json.Marshal(map[string]any{
		"selected": selected,
	})
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("concept_selection: encode result: %w", err)}
	}

	return engine.Outcome{
		Result: string(payload),
		Facts:  map[string]string{"concepts": strings.Join(names, ",")},
	}
}

// matchConcepts returns concepts whose name occurs in the text, capped at
// max. Longer names are preferred so a generic fragment does not crowd out a
// specific match.
func matchConcepts(all []market.Concept, text string, max int) []market.Concept {
	var matched []market.Concept
	for _, c := range all {
		if c.Name == "" {
			continue
		}
		if strings.Contains(text, c.Name) {
			matched = append(matched, c)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].Name) > len(matched[j].Name)
	})

	if len(matched) > max {
		matched = matched[:max]
	}

	return matched
}
