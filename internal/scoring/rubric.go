package scoring

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dealscope/internal/domain"
)

//go:embed rubrics/*.yaml
var rubricFS embed.FS

// DefaultRubricVersion is the embedded rubric used when no rubric file is configured.
const DefaultRubricVersion = "v1"

// Factor is one boolean check worth a fixed number of points.
type Factor struct {
	Key       string  `yaml:"key"`
	Name      string  `yaml:"name"`
	Points    int     `yaml:"points"`
	Check     string  `yaml:"check"`
	Threshold float64 `yaml:"threshold"`

	check Check
}

// Rubric is a versioned table of factors per dimension.
type Rubric struct {
	Version    string                        `yaml:"version"`
	Dimensions map[domain.Dimension][]Factor `yaml:"dimensions"`
}

// MaxPoints returns the points available in a dimension.
func (r *Rubric) MaxPoints(d domain.Dimension) int {
	total := 0
	for _, f := range r.Dimensions[d] {
		total += f.Points
	}
	return total
}

// DefaultRubric returns the embedded rubric.
func DefaultRubric() (*Rubric, error) {
	data, err := rubricFS.ReadFile("rubrics/" + DefaultRubricVersion + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded rubric: %w", err)
	}
	return ParseRubric(data)
}

// LoadRubric reads a rubric file. An empty path returns the embedded default.
func LoadRubric(path string) (*Rubric, error) {
	if path == "" {
		return DefaultRubric()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Key: "scoring.rubric_path", Reason: err.Error()}
	}
	return ParseRubric(data)
}

// ParseRubric decodes and validates a rubric document.
func ParseRubric(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, &domain.ConfigurationError{Key: "scoring.rubric", Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if err := r.bind(); err != nil {
		return nil, err
	}
	return &r, nil
}

// bind validates the rubric and resolves every factor's check function.
func (r *Rubric) bind() error {
	if r.Version == "" {
		return &domain.ConfigurationError{Key: "scoring.rubric.version", Reason: "must not be empty"}
	}
	for d := range r.Dimensions {
		if !d.IsValid() {
			return &domain.ConfigurationError{Key: "scoring.rubric.dimensions", Reason: fmt.Sprintf("unknown dimension %q", d)}
		}
	}
	for _, d := range domain.AllDimensions() {
		factors := r.Dimensions[d]
		seen := map[string]bool{}
		for i := range factors {
			f := &factors[i]
			key := fmt.Sprintf("scoring.rubric.%s.%s", d, f.Key)
			if f.Key == "" || seen[f.Key] {
				return &domain.ConfigurationError{Key: key, Reason: "factor key must be unique and non-empty"}
			}
			seen[f.Key] = true
			if f.Points <= 0 {
				return &domain.ConfigurationError{Key: key, Reason: "points must be positive"}
			}
			c, ok := lookupCheck(f.Check)
			if !ok {
				return &domain.ConfigurationError{Key: key, Reason: fmt.Sprintf("unknown check %q", f.Check)}
			}
			f.check = c
		}
		if r.MaxPoints(d) == 0 {
			return &domain.ConfigurationError{Key: "scoring.rubric." + string(d), Reason: "dimension has no factors"}
		}
	}
	return nil
}
