// Package header implements header reconciliation across the inputs to one
// merge or sort session (C5): unifying reference dictionaries, applying an
// optional override header's free-form text, and relaxing fatal dictionary
// mismatches to warnings when a region filter already restricts scope.
package header

import (
	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/bamerr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Reconcile unifies the headers of a session's inputs into one output
// header, following the longest-prefix-compatible-dictionary rule: whichever
// input header carries strictly more targets than the current candidate,
// and agrees with it on every target name the two share, replaces the
// candidate's dictionary. When regionActive is true a dictionary mismatch
// that would otherwise be fatal is logged as a warning instead, since the
// caller has already scoped the query to a named range.
func Reconcile(headers []*sam.Header, override *sam.Header, regionActive bool) (*sam.Header, error) {
	if len(headers) == 0 {
		return nil, errors.E(bamerr.Invalid, "no input headers to reconcile")
	}

	out := headers[0]
	for i := 1; i < len(headers); i++ {
		h := headers[i]
		if err := checkPrefixCompatible(out, h, "<input>", regionActive); err != nil {
			return nil, err
		}
		if len(h.Refs()) > len(out.Refs()) {
			out = h
		}
	}

	if override != nil {
		if err := applyOverride(out, override, regionActive); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// checkPrefixCompatible verifies that a and b agree on every target name
// within their common prefix, i.e. for k = min(|a|, |b|), a[0:k] == b[0:k].
func checkPrefixCompatible(a, b *sam.Header, file string, regionActive bool) error {
	ar, br := a.Refs(), b.Refs()
	k := len(ar)
	if len(br) < k {
		k = len(br)
	}
	for i := 0; i < k; i++ {
		if ar[i].Name() != br[i].Name() {
			err := bamerr.HeaderMismatchError(br[i].Name(), ar[i].Name(), file)
			if regionActive {
				log.Printf("header reconciler: %v (continuing: region filter active)", err)
				return nil
			}
			return err
		}
	}
	return nil
}

// applyOverride transfers the override header's free-form text into out in
// place, after validating its binary dictionary (when it carries one)
// against out's first len(override.Refs()) targets.
func applyOverride(out, override *sam.Header, regionActive bool) error {
	if refs := override.Refs(); len(refs) > 0 {
		outRefs := out.Refs()
		if len(refs) > len(outRefs) {
			err := bamerr.HeaderMismatchError("<override>", "<= reconciled target count", "override header")
			if regionActive {
				log.Printf("header reconciler: %v (continuing: region filter active)", err)
			} else {
				return err
			}
		} else {
			for i, r := range refs {
				if r.Name() != outRefs[i].Name() {
					err := bamerr.HeaderMismatchError(r.Name(), outRefs[i].Name(), "override header")
					if regionActive {
						log.Printf("header reconciler: %v (continuing: region filter active)", err)
						break
					}
					return err
				}
			}
		}
	}
	swapText(out, override)
	return nil
}

// swapText transfers override's free-form header text into out, leaving
// out's reference dictionary untouched: out's comments are replaced by
// override's, and override's read groups and programs are added to out's.
// Read groups and programs already in out are kept, and ones out rejects
// (such as a duplicate ID) are skipped, so out's RG/PG lines are not
// replaced wholesale.
func swapText(out, override *sam.Header) {
	out.Comments = override.Comments
	for _, rg := range override.RGs() {
		_ = out.AddReadGroup(rg)
	}
	for _, pg := range override.Programs() {
		_ = out.AddProgram(pg)
	}
}
