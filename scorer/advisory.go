package scorer

import (
	"encoding/json"
	"fmt"
	"strings"

	"highlight-reel-pipeline/llm"
	"highlight-reel-pipeline/types"
)

const advisorySystem = `You edit short news highlight reels. You may only reorder the given clips and relabel their roles. Never add, remove or change clips or times. Respond with ONLY a JSON object.`

type advisoryResponse struct {
	Order []int    `json:"order"`
	Roles []string `json:"roles"`
}

func advisoryPrompt(cands []types.ClipCandidate, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video title: %s\n\nClips:\n", title)
	for i, c := range cands {
		fmt.Fprintf(&b, "%d. [%.1fs-%.1fs] topic=%s role=%s score=%.2f: %s\n",
			i, c.Start, c.End, c.Topic, c.Role, c.Score, excerpt(c.Excerpt, 160))
	}
	fmt.Fprintf(&b, "\nReturn {\"order\": [clip indices in the best narrative order], \"roles\": [one of %s per position]}.\n",
		strings.Join(types.Roles, ", "))
	b.WriteString("The order must use every index from the list exactly once.")
	return b.String()
}

// ApplyAdvisory reorders and relabels cands per raw, a model reply. It only
// accepts a full permutation of the existing indices and known roles; anything
// else returns cands unchanged and false.
func ApplyAdvisory(cands []types.ClipCandidate, raw string) ([]types.ClipCandidate, bool) {
	obj := llm.ExtractJSON(raw)
	if obj == "" {
		return cands, false
	}
	var resp advisoryResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return cands, false
	}

	n := len(cands)
	if len(resp.Order) != n {
		return cands, false
	}
	seen := make([]bool, n)
	for _, idx := range resp.Order {
		if idx < 0 || idx >= n || seen[idx] {
			return cands, false
		}
		seen[idx] = true
	}
	if len(resp.Roles) != 0 {
		if len(resp.Roles) != n {
			return cands, false
		}
		for _, r := range resp.Roles {
			if !validRole(r) {
				return cands, false
			}
		}
	}

	out := make([]types.ClipCandidate, n)
	for pos, idx := range resp.Order {
		out[pos] = cands[idx]
	}
	if len(resp.Roles) == 0 {
		AssignRoles(out)
	} else {
		for i := range out {
			out[i].Role = strings.ToLower(strings.TrimSpace(resp.Roles[i]))
		}
	}
	return out, true
}

func validRole(r string) bool {
	r = strings.ToLower(strings.TrimSpace(r))
	for _, v := range types.Roles {
		if r == v {
			return true
		}
	}
	return false
}
