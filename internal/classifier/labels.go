package classifier

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// LoadLabels reads a label file with one raw label per line. Blank lines are
// skipped; line order must match the model output order.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Build()
	}
	labels, err := ParseLabels(data)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("label file %s contains no labels", path).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return labels, nil
}

// ParseLabels splits label file content into labels. A line longer than the
// scanner buffer is an error rather than a silently shortened vocabulary.
func ParseLabels(data []byte) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels after line %d: %w", len(labels), err)
	}
	return labels, nil
}
