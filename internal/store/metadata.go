package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// metadataFileName holds the labels of every package in a bucket, keyed by
// package hash.
const metadataFileName = "labels.yml"

type labelIndex map[string][]string

func loadLabels(bucket string) (labelIndex, error) {
	data, err := os.ReadFile(filepath.Join(bucket, metadataFileName))
	if os.IsNotExist(err) {
		return labelIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	index := labelIndex{}
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metadataFileName, err)
	}
	return index, nil
}

func saveLabels(bucket string, index labelIndex) error {
	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	return writeAtomic(filepath.Join(bucket, metadataFileName), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

func hasAllLabels(labels, want []string) bool {
	for _, w := range want {
		if !hasLabel(labels, w) {
			return false
		}
	}
	return true
}
