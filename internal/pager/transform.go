package pager

import (
	"github.com/basaltdb/sqlitecore/internal/dberr"
)

// Transform converts a page's raw on-disk bytes into the plaintext form
// the B-tree and record layers expect. Transforms chain: the first one
// registered runs first (outermost on-disk encoding first), e.g. decrypt
// then decompress.
type Transform interface {
	Apply(pgno Pgno, raw []byte) ([]byte, error)
}

// Pipeline runs a sequence of Transforms over a page's bytes.
type Pipeline struct {
	stages []Transform
}

// NewPipeline builds a Pipeline from the given stages in application order.
func NewPipeline(stages ...Transform) *Pipeline {
	return &Pipeline{stages: stages}
}

// Apply runs every stage over raw in order, short-circuiting on the first
// error.
func (p *Pipeline) Apply(pgno Pgno, raw []byte) ([]byte, error) {
	cur := raw
	for _, t := range p.stages {
		out, err := t.Apply(pgno, cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// IdentityTransform passes bytes through unchanged - the default pipeline
// for a plaintext, uncompressed database.
type IdentityTransform struct{}

func (IdentityTransform) Apply(_ Pgno, raw []byte) ([]byte, error) { return raw, nil }

// requireLen guards a transform stage against operating on a page shorter
// than it can possibly produce valid output from (e.g. a nonce or tag that
// doesn't fit), reporting it as corruption rather than panicking on a
// slice bounds error deep inside a cipher.
func requireLen(pgno Pgno, raw []byte, min int, reason string) error {
	if len(raw) < min {
		return &dberr.CorruptPageError{Page: uint32(pgno), Reason: reason}
	}
	return nil
}
