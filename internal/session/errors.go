package session

import "errors"

// Sentinel errors corresponding to the error kinds of spec.md §7 that
// the orchestrator itself can raise (ProtocolError conditions are
// logged and dropped inline rather than returned, per §4.6/§4.7).
var (
	// ErrUnknownBuffer is logged, not returned, when a chunk arrives for
	// a (session, modality) with no live buffer: Chunk logs it and
	// returns nil.
	ErrUnknownBuffer = errors.New("session: no live buffer for this session/modality")

	// ErrPreprocessing wraps a DSP-stage failure during finalization.
	ErrPreprocessing = errors.New("session: preprocessing failed")

	// ErrInference wraps a model-dispatch or demo-rule failure during
	// finalization.
	ErrInference = errors.New("session: inference failed")
)
