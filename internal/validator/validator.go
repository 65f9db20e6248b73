package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"dealscope/internal/domain"
	"dealscope/internal/parser"
	"dealscope/internal/port"
)

// Top-level sections every extraction is expected to carry.
const (
	SectionCompany   = "company"
	SectionFinancial = "financial"
	SectionTeam      = "team"
	SectionMarket    = "market"
	SectionRisks     = "risks"
)

// RequiredSections lists the top-level sections in schema order.
var RequiredSections = []string{SectionCompany, SectionFinancial, SectionTeam, SectionMarket, SectionRisks}

const (
	// DefaultSectionPenalty is the confidence deducted per missing section.
	DefaultSectionPenalty = 15.0
	// DefaultConfidence is used when the provider reports no confidence.
	DefaultConfidence = 50.0
)

// Validated is the typed, normalized form of one provider answer.
type Validated struct {
	Fields          *domain.ExtractedFields
	Confidence      float64
	MissingSections []string
	Issues          []string
}

// Validator turns raw provider output into strictly typed fields.
type Validator struct {
	registry       *Registry
	sectionPenalty float64
}

// New creates a Validator. A nil registry uses the built-in rules; a negative penalty uses the default.
func New(registry *Registry, sectionPenalty float64) *Validator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if sectionPenalty < 0 {
		sectionPenalty = DefaultSectionPenalty
	}
	return &Validator{registry: registry, sectionPenalty: sectionPenalty}
}

// Validate decodes and normalizes one extraction. Unknown keys are dropped and reported.
// A payload without any known section is a MalformedResponseError so the caller can re-ask.
func (v *Validator) Validate(out *port.ExtractOutput) (*Validated, error) {
	if out == nil || len(out.Fields) == 0 {
		return nil, &parser.MalformedResponseError{Provider: "validator", Err: errors.New("empty extraction")}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(out.Fields, &top); err != nil {
		return nil, &parser.MalformedResponseError{Provider: "validator", Raw: string(out.Fields), Err: fmt.Errorf("fields is not an object: %w", err)}
	}

	res := &Validated{Fields: &domain.ExtractedFields{}}
	known := map[string]bool{}
	for _, name := range RequiredSections {
		known[name] = true
	}
	for _, key := range sortedKeys(top) {
		if !known[key] {
			res.Issues = append(res.Issues, fmt.Sprintf("unknown section %q dropped", key))
		}
	}

	present := 0
	for _, name := range RequiredSections {
		raw, ok := top[name]
		if !ok || isNull(raw) {
			res.MissingSections = append(res.MissingSections, name)
			continue
		}
		var (
			issues []string
			err    error
		)
		switch name {
		case SectionCompany:
			issues, err = decodeSection(name, raw, &res.Fields.Company)
		case SectionFinancial:
			issues, err = decodeSection(name, raw, &res.Fields.Financial)
		case SectionTeam:
			issues, err = decodeSection(name, raw, &res.Fields.Team)
		case SectionMarket:
			issues, err = decodeSection(name, raw, &res.Fields.Market)
		case SectionRisks:
			res.Fields.Risks, issues, err = decodeRisks(raw)
		}
		res.Issues = append(res.Issues, issues...)
		if err != nil {
			res.Issues = append(res.Issues, err.Error())
			res.MissingSections = append(res.MissingSections, name)
			continue
		}
		present++
	}
	if present == 0 {
		return nil, &parser.MalformedResponseError{Provider: "validator", Raw: string(out.Fields), Err: errors.New("no known sections in extraction")}
	}

	for _, rule := range v.registry.All() {
		res.Issues = append(res.Issues, rule.Apply(res.Fields)...)
	}

	res.Confidence = v.confidence(out.Confidence, len(res.MissingSections))
	if out.Confidence < 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("confidence not reported, defaulted to %g", DefaultConfidence))
	}
	return res, nil
}

func (v *Validator) confidence(reported float64, missing int) float64 {
	c := reported
	if c < 0 || math.IsNaN(c) {
		c = DefaultConfidence
	}
	if c > 100 {
		c = 100
	}
	c -= v.sectionPenalty * float64(missing)
	if c < 0 {
		c = 0
	}
	return c
}

// Classify maps a settled extraction error to the outcome reported for the document.
func Classify(err error) domain.Outcome {
	if err == nil {
		return domain.OutcomeSuccess
	}
	if errors.Is(err, domain.ErrTransientExtraction) || parser.Classify(err) == domain.ErrorKindTransient {
		return domain.OutcomeTransientExhausted
	}
	return domain.OutcomePermanentFailure
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// decodeSection decodes raw into the struct pointed to by dst one field at a time, so a single
// mistyped value is dropped instead of losing the whole section.
func decodeSection(section string, raw json.RawMessage, dst interface{}) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("section %q is not an object, dropped", section)
	}

	var issues []string
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	seen := make(map[string]bool, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		key := jsonName(rt.Field(i))
		seen[key] = true
		val, ok := obj[key]
		if !ok || isNull(val) {
			continue
		}
		field := rv.Field(i)
		if err := json.Unmarshal(val, field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			issues = append(issues, fmt.Sprintf("%s.%s: invalid value %s dropped", section, key, truncate(string(val), 40)))
		}
	}
	for _, key := range sortedKeys(obj) {
		if !seen[key] {
			issues = append(issues, fmt.Sprintf("%s.%s: unknown field dropped", section, key))
		}
	}
	return issues, nil
}

func decodeRisks(raw json.RawMessage) ([]domain.RiskFlag, []string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("section %q is not a list, dropped", SectionRisks)
	}
	risks := make([]domain.RiskFlag, 0, len(items))
	var issues []string
	for i, item := range items {
		var r domain.RiskFlag
		itemIssues, err := decodeSection(fmt.Sprintf("risks[%d]", i), item, &r)
		issues = append(issues, itemIssues...)
		if err != nil {
			issues = append(issues, err.Error())
			continue
		}
		risks = append(risks, r)
	}
	return risks, issues, nil
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
