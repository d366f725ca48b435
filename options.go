package meshdb

import "log/slog"

// options holds NewDatabase's configurable knobs (SPEC_FULL.md §9).
// Grounded on the teacher's NewWorld(initialCapacity int) (world.go) —
// generalized from one int argument to a functional-options set because
// a mesh database has several independent knobs (logger, growth floor,
// entity capacity, tag capacity). The entity capacity hint is a single
// value shared by every entity type.
type options struct {
	log                   *slog.Logger
	growthFloor           int
	initialEntityCapacity int
	initialTagCapacity    int
}

func defaultOptions() options {
	return options{
		log:         discardLog,
		growthFloor: defaultGrowthFloor,
	}
}

// Option configures a Database at construction time.
type Option func(*options)

// WithLogger injects a structured logger for the database's own
// diagnostic output (sequence growth, tag allocation and deallocation,
// adjacency index builds). The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithGrowthFloor overrides the minimum slots a sequence grows by on each
// expansion (spec.md §4.3's "doubling with a floor of 4096"). n <= 0 is
// ignored.
func WithGrowthFloor(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.growthFloor = n
		}
	}
}

// WithInitialEntityCapacity pre-sizes every new sequence that Allocate
// creates, of any type, to at least n slots instead of growing it from
// the creating Allocate call's count. Structured vertex grids are not
// affected. n <= 0 is ignored (no pre-sizing).
func WithInitialEntityCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialEntityCapacity = n
		}
	}
}

// WithInitialTagCapacity pre-sizes the tag registry's descriptor slice
// and name index to n entries instead of growing them one CreateTag at a
// time. n <= 0 is ignored.
func WithInitialTagCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialTagCapacity = n
		}
	}
}
