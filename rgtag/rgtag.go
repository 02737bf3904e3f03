// Package rgtag derives and injects the RG (read group) aux tag used to
// track which input file a merged record came from.
package rgtag

import (
	"path/filepath"
	"strings"

	"github.com/biogo/hts/sam"
)

var tag = sam.Tag{'R', 'G'}

// FromPath derives a read-group id from an input path: its basename with a
// trailing ".bam" removed, e.g. "/data/sample1.sorted.bam" -> "sample1.sorted".
func FromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, ".bam")
}

// Inject stamps the RG aux tag onto rec in place, replacing any existing
// value.
func Inject(rec *sam.Record, rg string) {
	if rg == "" {
		return
	}
	aux, err := sam.NewAux(tag, rg)
	if err != nil {
		return
	}
	rec.AuxFields = append(removeExisting(rec.AuxFields), aux)
}

// Get returns the RG aux tag's value, if present.
func Get(rec *sam.Record) (string, bool) {
	aux := rec.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}

func removeExisting(fields sam.AuxFields) sam.AuxFields {
	out := fields[:0:0]
	for _, f := range fields {
		if f.Tag() != tag {
			out = append(out, f)
		}
	}
	return out
}
