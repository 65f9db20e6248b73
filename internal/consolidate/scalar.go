package consolidate

import "dealscope/internal/domain"

// pick chooses the value of the highest-ranked result that supplies one and records provenance.
func pick[T comparable](m *merge, path string, get func(*domain.ExtractedFields) *T) *T {
	return pickFunc(m, path, get, func(a, b T) bool { return a == b })
}

// pickString is pick with NormalizeKey equality for provenance grouping.
func pickString(m *merge, path string, get func(*domain.ExtractedFields) *string) *string {
	return pickFunc(m, path, get, func(a, b string) bool { return NormalizeKey(a) == NormalizeKey(b) })
}

func pickFunc[T any](m *merge, path string, get func(*domain.ExtractedFields) *T, equal func(a, b T) bool) *T {
	prov := domain.FieldProvenance{Field: path, Sources: []domain.SourceRef{}}
	var chosen *T
	for _, r := range m.ranked {
		v := get(r.Fields)
		if v == nil {
			continue
		}
		m.contributed[r.DocumentID] = true
		if chosen == nil {
			val := *v
			chosen = &val
			prov.Sources = append(prov.Sources, sourceRef(r))
			continue
		}
		if equal(*chosen, *v) {
			prov.Sources = append(prov.Sources, sourceRef(r))
		} else {
			prov.Conflict = true
		}
	}
	m.provenance[path] = prov
	return chosen
}
