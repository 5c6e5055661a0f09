package scenario

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dev/bravebird/ui-harness/pkg/models"
)

var stepKeywords = []string{"Given", "When", "Then", "And", "But"}

// ParseFile parses a feature file from disk
func ParseFile(path string) (*models.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature file: %w", err)
	}
	feature, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	feature.Path = path
	return feature, nil
}

// Parse parses the Gherkin subset used by the harness: one Feature, any
// number of Scenarios, Given/When/Then/And/But steps and # comments.
// Description lines under Feature are ignored.
func Parse(data []byte) (*models.Feature, error) {
	var (
		feature *models.Feature
		current *models.Scenario
		lineNo  int
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}

		if name, ok := cutKeyword(line, "Feature:"); ok {
			if feature != nil {
				return nil, fmt.Errorf("line %d: more than one Feature", lineNo)
			}
			feature = &models.Feature{Name: name}
			continue
		}

		if name, ok := cutKeyword(line, "Scenario:"); ok {
			if feature == nil {
				return nil, fmt.Errorf("line %d: Scenario before Feature", lineNo)
			}
			if current != nil {
				feature.Scenarios = append(feature.Scenarios, *current)
			}
			current = &models.Scenario{Name: name, Line: lineNo}
			continue
		}

		if keyword, text, ok := cutStep(line); ok {
			if current == nil {
				return nil, fmt.Errorf("line %d: step outside of a Scenario", lineNo)
			}
			current.Steps = append(current.Steps, models.Step{Keyword: keyword, Text: text, Line: lineNo})
			continue
		}

		if current != nil {
			return nil, fmt.Errorf("line %d: unexpected line in scenario %q: %s", lineNo, current.Name, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan feature: %w", err)
	}

	if feature == nil {
		return nil, fmt.Errorf("no Feature found")
	}
	if current != nil {
		feature.Scenarios = append(feature.Scenarios, *current)
	}
	return feature, nil
}

// LoadDir parses every *.feature file in dir, sorted by file name
func LoadDir(dir string) ([]*models.Feature, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.feature"))
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	sort.Strings(paths)

	features := make([]*models.Feature, 0, len(paths))
	for _, path := range paths {
		f, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

// FindScenario returns the scenario named name
func FindScenario(f *models.Feature, name string) (models.Scenario, bool) {
	for _, sc := range f.Scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return models.Scenario{}, false
}

func cutKeyword(line, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(line, keyword)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func cutStep(line string) (keyword, text string, ok bool) {
	for _, kw := range stepKeywords {
		rest, found := strings.CutPrefix(line, kw+" ")
		if found {
			return kw, strings.TrimSpace(rest), true
		}
	}
	return "", "", false
}
