package relevance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/katalvlaran/sensgraph/comm"
)

// ColorOverlapError reports parallel-derivative colors whose seeds share
// dependencies on a single rank. Seeds of one color are perturbed
// simultaneously, so any shared variable would mix their contributions.
// Colors map each offending color to the sorted seed names involved,
// aggregated across the whole rank group.
type ColorOverlapError struct {
	ForwardColors map[string][]string // color → design variables
	ReverseColors map[string][]string // color → responses
}

// Error renders one clause per offending color.
func (e *ColorOverlapError) Error() string {
	parts := make([]string, 0, len(e.ForwardColors)+len(e.ReverseColors))
	for _, color := range sortedColorKeys(e.ForwardColors) {
		parts = append(parts, fmt.Sprintf(
			"parallel derivative color %q has design variables %v with overlapping dependencies on the same rank",
			color, e.ForwardColors[color]))
	}
	for _, color := range sortedColorKeys(e.ReverseColors) {
		parts = append(parts, fmt.Sprintf(
			"parallel derivative color %q has responses %v with overlapping dependencies on the same rank",
			color, e.ReverseColors[color]))
	}

	return "relevance: " + strings.Join(parts, "; ")
}

// Unwrap ties the error to the ErrColorOverlap sentinel for errors.Is.
func (e *ColorOverlapError) Unwrap() error { return ErrColorOverlap }

// overlapReport is one rank's contribution to the overlap exchange.
type overlapReport struct {
	Fwd map[string][]string
	Rev map[string][]string
}

// parDerivErrCheck validates that no two seeds of one parallel-derivative
// color reach a common variable on any single rank. Each rank inspects its
// own rank-local seed arrays, the findings are exchanged over the model's
// rank group, and the union is reported so every rank fails identically.
func (r *Relevance) parDerivErrCheck(ctx context.Context, model Model, fwdMeta, revMeta []SeedMeta) error {
	mode := model.Mode()
	var report overlapReport
	if mode == ModeForward || mode == ModeAuto {
		report.Fwd = r.rankOverlaps(fwdMeta, Forward, InputsOnly)
	}
	if mode == ModeReverse || mode == ModeAuto {
		report.Rev = r.rankOverlaps(revMeta, Reverse, OutputsOnly)
	}

	reports, err := comm.AllGather(ctx, model.Comm(), report)
	if err != nil {
		return fmt.Errorf("relevance: parallel derivative check: %w", err)
	}

	overlapErr := &ColorOverlapError{
		ForwardColors: make(map[string][]string),
		ReverseColors: make(map[string][]string),
	}
	for _, rep := range reports {
		mergeColors(overlapErr.ForwardColors, rep.Fwd)
		mergeColors(overlapErr.ReverseColors, rep.Rev)
	}
	if len(overlapErr.ForwardColors) == 0 && len(overlapErr.ReverseColors) == 0 {
		return nil
	}
	for color := range overlapErr.ForwardColors {
		overlapErr.ForwardColors[color] = dedupSorted(overlapErr.ForwardColors[color])
	}
	for color := range overlapErr.ReverseColors {
		overlapErr.ReverseColors[color] = dedupSorted(overlapErr.ReverseColors[color])
	}

	return overlapErr
}

// rankOverlaps finds, per color, the seeds whose rank-local dependency sets
// intersect on a variable passing the class filter. Returns nil when the
// rank is clean.
func (r *Relevance) rankOverlaps(metas []SeedMeta, dir Direction, filter IOFilter) map[string][]string {
	byColor := make(map[string][]string)
	seen := make(map[string]bool)
	for _, m := range metas {
		if m.ParallelDerivColor == "" || seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		byColor[m.ParallelDerivColor] = append(byColor[m.ParallelDerivColor], m.Source)
	}

	var out map[string][]string
	for color, seeds := range byColor {
		if len(seeds) < 2 {
			continue
		}
		overlapped := make(map[string]bool)
		for i := 0; i < len(seeds); i++ {
			for j := i + 1; j < len(seeds); j++ {
				if r.overlapOn(r.singleVar[dir][seeds[i]], r.singleVar[dir][seeds[j]], filter) {
					overlapped[seeds[i]] = true
					overlapped[seeds[j]] = true
				}
			}
		}
		if len(overlapped) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]string)
		}
		names := make([]string, 0, len(overlapped))
		for name := range overlapped {
			names = append(names, name)
		}
		sort.Strings(names)
		out[color] = names
	}

	return out
}

// overlapOn reports whether a and b are both set at any index whose
// variable passes the class filter.
func (r *Relevance) overlapOn(a, b array, filter IOFilter) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] && b[i] && r.passesFilter(r.allVars[i], filter) {
			return true
		}
	}

	return false
}

// mergeColors appends src's names into dst per color.
func mergeColors(dst, src map[string][]string) {
	for color, names := range src {
		dst[color] = append(dst[color], names...)
	}
}

// dedupSorted sorts names and drops adjacent duplicates in place.
func dedupSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			out = append(out, n)
		}
	}

	return out
}

// sortedColorKeys returns m's keys in ascending order.
func sortedColorKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
