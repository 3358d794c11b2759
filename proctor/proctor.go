// Package proctor implements the Proctor component (spec §4.D): a
// per-frame person-count check that emits cheat events. The object
// detector itself is an external collaborator (spec §1 Non-goals list
// "the external object-detection model" as out of scope), so Proctor
// depends on a Detector interface rather than embedding any model —
// callers wire in an in-process or HTTP-backed implementation.
package proctor

import (
	"context"
	"fmt"
	"sync"

	"github.com/interviewrt/runtime/logger"
)

// BoundingBox is one detected object, the shape an external detector
// returns (spec §6: "in-process model returning bounding boxes with
// class IDs").
type BoundingBox struct {
	ClassID int
	Score   float64
}

// PersonClassID is the detector's class id for "person", matching the
// convention of common pretrained detectors (e.g. COCO class 0) the
// original source's YOLO integration relied on.
const PersonClassID = 0

// Detector performs object detection over a decoded image. Implementations
// are process-wide singletons with internal synchronisation, lazily
// initialised (spec §5) — Proctor only calls Detect; it does not manage
// the detector's lifecycle beyond a single lazy construction.
type Detector interface {
	Detect(ctx context.Context, img []byte) ([]BoundingBox, error)
}

// Result is the outcome of inspecting one frame.
type Result struct {
	OK               bool
	CheatMultiPerson bool
	DecodeError      bool
	PersonCount      int
}

// DetectorFactory lazily constructs the process-wide Detector on first
// use, mirroring the original's "if not hasattr(self, 'yolo_model')"
// once-only load, generalized to Go's sync.Once per spec §4.D/§5.
type DetectorFactory func() (Detector, error)

// Proctor inspects video frames for proctoring violations.
type Proctor struct {
	factory DetectorFactory

	once     sync.Once
	detector Detector
	loadErr  error

	disabledMu sync.RWMutex
	disabled   bool
}

// New constructs a Proctor. The detector is not built until the first
// Inspect call.
func New(factory DetectorFactory) *Proctor {
	return &Proctor{factory: factory}
}

// Disabled reports whether the Proctor has been turned off for this
// session after a detector load failure (spec §7: "detector load failure
// disables the proctor for the session").
func (p *Proctor) Disabled() bool {
	p.disabledMu.RLock()
	defer p.disabledMu.RUnlock()
	return p.disabled
}

// Inspect decodes frameBytes (already raw JPEG bytes — base64 decoding
// happens in mediabuf before this call) and runs the detector. Decode
// errors are tolerated as a per-frame error, never fatal. A detector load
// failure disables the Proctor for the remaining session lifetime and is
// reported once via the returned error.
func (p *Proctor) Inspect(ctx context.Context, frameBytes []byte) (Result, error) {
	if p.Disabled() {
		return Result{OK: true}, nil
	}

	p.once.Do(func() {
		p.detector, p.loadErr = p.factory()
	})
	if p.loadErr != nil {
		p.disabledMu.Lock()
		p.disabled = true
		p.disabledMu.Unlock()
		logger.Warn("proctor: detector load failed, disabling for session", "error", p.loadErr)
		return Result{OK: true}, fmt.Errorf("proctor: detector load failed: %w", p.loadErr)
	}

	boxes, err := p.detector.Detect(ctx, frameBytes)
	if err != nil {
		return Result{DecodeError: true}, fmt.Errorf("proctor: detect failed: %w", err)
	}

	persons := 0
	for _, b := range boxes {
		if b.ClassID == PersonClassID {
			persons++
		}
	}

	// >1 person: cheat signal. =1 or =0: no action (spec §4.D tolerates
	// zero detections — e.g. camera briefly off-frame).
	return Result{OK: true, CheatMultiPerson: persons > 1, PersonCount: persons}, nil
}
