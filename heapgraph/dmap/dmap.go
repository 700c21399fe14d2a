// Package dmap loads deobfuscation mappings from a side-channel CSV file:
// one "package,obfuscated,deobfuscated" row per mapped type. The format has
// no schema-evolution concerns (it's one fixed three-column shape), so it's
// read with the standard library's encoding/csv rather than a third-party
// parser.
package dmap

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Mapping is one parsed CSV row. Package is empty for an unscoped mapping.
type Mapping struct {
	Package      string
	Obfuscated   string
	Deobfuscated string
}

// Load parses r as package,obfuscated,deobfuscated CSV rows. A blank
// package column is kept blank (unscoped mapping); a completely blank row
// is skipped.
func Load(r io.Reader) ([]Mapping, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var mappings []Mapping
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dmap: parse row: %w", err)
		}
		if record[0] == "" && record[1] == "" && record[2] == "" {
			continue
		}
		mappings = append(mappings, Mapping{
			Package:      record[0],
			Obfuscated:   record[1],
			Deobfuscated: record[2],
		})
	}
	return mappings, nil
}

// Apply loads r's mappings and records each of them through add —
// typically a *heapgraph.Tracker's AddDeobfuscationMapping.
func Apply(r io.Reader, add func(pkg, obfuscated, deobfuscated string)) error {
	mappings, err := Load(r)
	if err != nil {
		return err
	}
	for _, m := range mappings {
		add(m.Package, m.Obfuscated, m.Deobfuscated)
	}
	return nil
}
