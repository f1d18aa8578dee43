// Package model turns an external language model's free-text assessment
// (or its absence) into a fraud signal verdict.
//
// The model dependency is an abstract capability, not a concrete client:
// anything matching CompleteFunc can back the interpreter, and the
// deterministic fallback covers the nil-capability and call-failure cases.
// The analysis pipeline never fails because the model is unavailable.
package model

import "context"

// CompleteFunc is the external model capability: prompt in, free text out.
// Implementations must honor context cancellation.
type CompleteFunc func(ctx context.Context, prompt string) (string, error)
