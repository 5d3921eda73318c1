// Package pass schedules the frame's render passes. Passes are declared
// once at startup in a fixed order; every frame replays the same list, so
// frame composition is static and pass dependencies are checked at
// declaration time rather than per frame.
package pass

import (
	"errors"
	"fmt"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/internal/elog"
	"github.com/gogpu/ember/resource"
)

// Scheduler errors.
var (
	// ErrDuplicatePass is returned by Declare when a pass name is
	// already taken.
	ErrDuplicatePass = errors.New("pass: duplicate pass name")

	// ErrUnsatisfiedRead is returned by Declare when a pass samples a
	// target that no earlier pass renders into.
	ErrUnsatisfiedRead = errors.New("pass: read target has no earlier producer")
)

// RecordFunc records one pass's draw commands. Returning an error aborts
// the frame; the scheduler abandons the frame token without submitting.
type RecordFunc func(enc backend.PassEncoder) error

// Descriptor declares one render pass.
type Descriptor struct {
	// Name identifies the pass in logs and frame records.
	Name string

	// Color is the offscreen color target. The zero handle targets the
	// presentation surface.
	Color resource.TargetHandle

	// Depth is the depth target. The zero handle means no depth
	// attachment.
	Depth resource.TargetHandle

	// Reads lists offscreen targets this pass samples. Each must be
	// rendered by an earlier pass; Declare rejects the pass otherwise.
	Reads []resource.TargetHandle

	// Clear is the clear/load policy for the pass's attachments.
	Clear backend.ClearPolicy

	// Empty, when non-nil, is consulted each frame; a true result skips
	// the pass entirely (no encoder, no clears).
	Empty func() bool

	// Record records the pass's draw commands. A nil Record still runs
	// the pass for its clears.
	Record RecordFunc
}

// Scheduler owns the declared pass list and drives one frame through the
// backend: acquire, record every pass in declared order, submit.
//
// Scheduler is not safe for concurrent use; declaration happens at
// startup and RunFrame stays on the frame-producing goroutine.
type Scheduler struct {
	ctx   backend.Context
	table *resource.Table

	passes  []Descriptor
	names   map[string]bool
	written map[resource.TargetHandle]bool
}

// NewScheduler creates a scheduler over the given context and resource
// table.
func NewScheduler(ctx backend.Context, table *resource.Table) *Scheduler {
	return &Scheduler{
		ctx:     ctx,
		table:   table,
		names:   make(map[string]bool),
		written: make(map[resource.TargetHandle]bool),
	}
}

// Declare appends a pass to the frame. Passes run in declaration order;
// a pass reading a target must be declared after the pass producing it.
func (s *Scheduler) Declare(d Descriptor) error {
	if s.names[d.Name] {
		return fmt.Errorf("%w: %q", ErrDuplicatePass, d.Name)
	}
	for _, r := range d.Reads {
		if !s.written[r] {
			return fmt.Errorf("%w: pass %q reads %s", ErrUnsatisfiedRead, d.Name, r)
		}
	}

	s.names[d.Name] = true
	if d.Color.Valid() {
		s.written[d.Color] = true
	}
	if d.Depth.Valid() {
		s.written[d.Depth] = true
	}
	s.passes = append(s.passes, d)
	elog.Logger().Debug("declared pass", "name", d.Name, "total", len(s.passes))
	return nil
}

// Passes returns the declared pass names in run order.
func (s *Scheduler) Passes() []string {
	out := make([]string, len(s.passes))
	for i := range s.passes {
		out[i] = s.passes[i].Name
	}
	return out
}

// RunFrame acquires a surface image, records every declared pass in
// order, and submits. On any failure the frame is abandoned cleanly and
// nothing is presented.
//
// A surface loss from BeginFrame is returned wrapped; the caller
// reconfigures the surface and retries on the next frame.
func (s *Scheduler) RunFrame() error {
	tok, err := s.ctx.BeginFrame()
	if err != nil {
		return fmt.Errorf("run frame: %w", err)
	}

	for i := range s.passes {
		d := &s.passes[i]
		if d.Empty != nil && d.Empty() {
			continue
		}

		cfg := backend.PassConfig{Label: d.Name, Clear: d.Clear}
		if d.Color.Valid() {
			entry, err := s.table.Target(d.Color)
			if err != nil {
				s.ctx.Abandon(tok)
				return fmt.Errorf("pass %q color: %w", d.Name, err)
			}
			cfg.Color = entry.Texture
		}
		if d.Depth.Valid() {
			entry, err := s.table.Target(d.Depth)
			if err != nil {
				s.ctx.Abandon(tok)
				return fmt.Errorf("pass %q depth: %w", d.Name, err)
			}
			cfg.Depth = entry.Texture
		}

		enc, err := s.ctx.BeginPass(tok, cfg)
		if err != nil {
			s.ctx.Abandon(tok)
			return fmt.Errorf("pass %q: %w", d.Name, err)
		}
		if d.Record != nil {
			if err := d.Record(enc); err != nil {
				enc.End()
				s.ctx.Abandon(tok)
				return fmt.Errorf("pass %q: %w", d.Name, err)
			}
		}
		enc.End()
	}

	if err := s.ctx.Submit(tok); err != nil {
		return fmt.Errorf("run frame: %w", err)
	}
	return nil
}
