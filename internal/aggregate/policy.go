// internal/aggregate/policy.go
package aggregate

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Annotate attaches the SKU allow-list of each policy entry to the branch
// with that ID, appending a placeholder branch for IDs never observed.
// Inventory entries are not touched. Observed branch IDs follow replay order,
// so each attachment to an observed branch is logged with its name.
func Annotate(log zerolog.Logger, m *Model, policy map[int][]string) {
	ids := make([]int, 0, len(policy))
	for id := range policy {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	known := make(map[int]int, len(m.Branches))
	for i, b := range m.Branches {
		known[b.ID] = i
	}

	added := 0
	for _, id := range ids {
		skus := append([]string(nil), policy[id]...)
		if i, ok := known[id]; ok {
			m.Branches[i].OnlySKUs = skus
			log.Info().
				Int("branch_id", id).
				Str("branch", m.Branches[i].Name).
				Int("skus", len(skus)).
				Msg("branch policy attached to observed branch")
			continue
		}
		m.Branches = append(m.Branches, Branch{ID: id, Name: fmt.Sprintf("Branch %d", id), OnlySKUs: skus})
		added++
	}
	log.Debug().Int("policies", len(ids)).Int("placeholders", added).Msg("branch policy applied")
}
