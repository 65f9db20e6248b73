package consolidate

import (
	"github.com/google/uuid"

	"dealscope/internal/domain"
)

type listEntry struct {
	value      string
	confidence float64
}

// union merges a list field across results in document order, deduplicating by NormalizeKey.
// A duplicate from a more confident document replaces the spelling but keeps the position.
func (m *merge) union(path string, get func(*domain.ExtractedFields) []string) []string {
	prov := domain.FieldProvenance{Field: path, Sources: []domain.SourceRef{}}
	var entries []listEntry
	index := map[string]int{}

	for _, r := range m.byIndex {
		supplied := false
		for _, item := range get(r.Fields) {
			key := NormalizeKey(item)
			if key == "" {
				continue
			}
			supplied = true
			if i, ok := index[key]; ok {
				if r.Confidence > entries[i].confidence {
					entries[i] = listEntry{value: item, confidence: r.Confidence}
				}
				continue
			}
			index[key] = len(entries)
			entries = append(entries, listEntry{value: item, confidence: r.Confidence})
		}
		if supplied {
			m.contributed[r.DocumentID] = true
			prov.Sources = append(prov.Sources, sourceRef(r))
		}
	}
	m.provenance[path] = prov

	if len(entries) == 0 {
		return nil
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

// risks merges risk flags keyed by normalized (type, description). On a duplicate the higher
// severity wins, then the higher confidence; the first-seen position is kept.
func (m *merge) risks() []domain.ConsolidatedRisk {
	out := []domain.ConsolidatedRisk{}
	index := map[string]int{}
	seen := map[string]map[uuid.UUID]bool{}

	for _, r := range m.byIndex {
		for _, flag := range r.Fields.Risks {
			key := NormalizeKey(flag.Type) + "\x00" + NormalizeKey(flag.Description)
			if NormalizeKey(flag.Description) == "" {
				continue
			}
			m.contributed[r.DocumentID] = true
			i, ok := index[key]
			if !ok {
				index[key] = len(out)
				seen[key] = map[uuid.UUID]bool{r.DocumentID: true}
				out = append(out, domain.ConsolidatedRisk{
					RiskFlag:   flag,
					Confidence: r.Confidence,
					Sources:    []domain.SourceRef{sourceRef(r)},
				})
				continue
			}
			existing := &out[i]
			if !seen[key][r.DocumentID] {
				seen[key][r.DocumentID] = true
				existing.Sources = append(existing.Sources, sourceRef(r))
			}
			if outranks(flag.Severity, r.Confidence, existing.Severity, existing.Confidence) {
				existing.RiskFlag = flag
				existing.Confidence = r.Confidence
			}
		}
	}
	return out
}

func outranks(sev domain.Severity, conf float64, curSev domain.Severity, curConf float64) bool {
	if sev.Rank() != curSev.Rank() {
		return sev.Rank() > curSev.Rank()
	}
	return conf > curConf
}
