// Package schema models indexes and uniqueness constraints as they travel
// from source introspection through flat files to target provisioning.
package schema

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	KindIndex      = "index"
	KindConstraint = "constraint"
)

// Object is one extracted index or constraint.
type Object struct {
	Kind       string
	Label      string
	Properties []string
	Unique     bool
	Status     string
}

var header = []string{"kind", "label", "property", "uniqueness", "status"}

// WriteCSV persists objects of one kind to a metadata CSV.
func WriteCSV(path string, objects []Object) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, obj := range objects {
		row := []string{
			obj.Kind,
			obj.Label,
			strings.Join(obj.Properties, ";"),
			strconv.FormatBool(obj.Unique),
			obj.Status,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV loads objects back from a metadata CSV. Rows that do not parse are
// skipped rather than failing the load.
func ReadCSV(path string) ([]Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var objects []Object
	for i, row := range rows {
		if i == 0 || len(row) < 5 {
			continue
		}
		unique, _ := strconv.ParseBool(row[3])
		obj := Object{
			Kind:   row[0],
			Label:  row[1],
			Unique: unique,
			Status: row[4],
		}
		if row[2] != "" {
			obj.Properties = strings.Split(row[2], ";")
		}
		if obj.Kind != KindIndex && obj.Kind != KindConstraint {
			continue
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
