// Package engine links display blocks, code lines and descriptions of one
// lesson step and decides which of them are hovered, selected or shown.
//
// An Engine has two states. It is idle when no line is selected and
// selected when exactly one line is. Pointer events move it between the
// two; every visual consequence is reported to a Sink.
package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetemplate/codelesson/internal/assoc"
)

// Config holds timing and collaborators of an Engine.
type Config struct {
	AnimationDuration time.Duration // show/hide transition (default: 300ms)
	Easing            string        // CSS easing name (default: ease-in-out)
	RevealDelay       time.Duration // delay before a shown block settles (default: 10ms)
	BlinkInterval     time.Duration // time between blink toggles (default: 200ms)
	BlinkTimes        int           // blinks when the caller passes zero (default: 3)
	ShakeDuration     time.Duration // default: 500ms
	PulseDuration     time.Duration // default: 1s

	Scheduler Scheduler       // default: RealScheduler
	Logger    *zerolog.Logger // default: disabled
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		AnimationDuration: 300 * time.Millisecond,
		Easing:            "ease-in-out",
		RevealDelay:       10 * time.Millisecond,
		BlinkInterval:     200 * time.Millisecond,
		BlinkTimes:        3,
		ShakeDuration:     500 * time.Millisecond,
		PulseDuration:     time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AnimationDuration <= 0 {
		c.AnimationDuration = d.AnimationDuration
	}
	if c.Easing == "" {
		c.Easing = d.Easing
	}
	if c.RevealDelay <= 0 {
		c.RevealDelay = d.RevealDelay
	}
	if c.BlinkInterval <= 0 {
		c.BlinkInterval = d.BlinkInterval
	}
	if c.BlinkTimes <= 0 {
		c.BlinkTimes = d.BlinkTimes
	}
	if c.ShakeDuration <= 0 {
		c.ShakeDuration = d.ShakeDuration
	}
	if c.PulseDuration <= 0 {
		c.PulseDuration = d.PulseDuration
	}
	if c.Scheduler == nil {
		c.Scheduler = RealScheduler{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}

type entry struct {
	handle Handle
	serial uint64
}

// hoverMark records what a line hover applied.
type hoverMark struct {
	class Class
	block assoc.BlockID
}

// Engine owns the registries and interaction state of the step on screen.
// All methods are safe for concurrent use.
type Engine struct {
	mu   sync.Mutex
	sink Sink
	cfg  Config
	log  zerolog.Logger

	model        *assoc.Model
	blocks       map[assoc.BlockID]entry
	lines        map[assoc.LineID]entry
	descriptions map[assoc.DescriptionID]string
	actions      map[assoc.BlockID][]Action

	selected          assoc.LineID
	highlightedLines  *orderedSet[assoc.LineID]
	highlightedBlocks *orderedSet[assoc.BlockID]
	descriptionActive bool
	hovered           map[assoc.LineID]hoverMark

	hidden    map[assoc.BlockID]bool
	draggable map[assoc.BlockID]bool
	dragging  assoc.BlockID
	marked    map[assoc.BlockID]bool

	epoch     uint64
	serial    uint64
	timers    map[uint64]Timer
	nextTimer uint64
}

// New creates an idle Engine reporting to sink.
func New(sink Sink, cfg Config) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	cfg = cfg.withDefaults()
	return &Engine{
		sink:              sink,
		cfg:               cfg,
		log:               cfg.Logger.With().Str("component", "engine").Logger(),
		model:             assoc.New(),
		blocks:            make(map[assoc.BlockID]entry),
		lines:             make(map[assoc.LineID]entry),
		descriptions:      make(map[assoc.DescriptionID]string),
		actions:           make(map[assoc.BlockID][]Action),
		highlightedLines:  newOrderedSet[assoc.LineID](),
		highlightedBlocks: newOrderedSet[assoc.BlockID](),
		hovered:           make(map[assoc.LineID]hoverMark),
		hidden:            make(map[assoc.BlockID]bool),
		draggable:         make(map[assoc.BlockID]bool),
		marked:            make(map[assoc.BlockID]bool),
		timers:            make(map[uint64]Timer),
	}
}

// RegisterBlock stores a display block and its ordered line list.
// Registering an id again replaces the previous record.
func (e *Engine) RegisterBlock(id assoc.BlockID, lines []assoc.LineID, h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.serial++
	e.blocks[id] = entry{handle: h, serial: e.serial}
	e.model.SetBlockAssociations(id, lines)
}

// RegisterCodeLine stores a code line and what it points at.
func (e *Engine) RegisterCodeLine(id assoc.LineID, a assoc.LineAssociation, h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.serial++
	e.lines[id] = entry{handle: h, serial: e.serial}
	e.model.SetLineAssociation(id, a)
}

// RegisterDescriptionContent stores description content, replacing any
// earlier content for the same id.
func (e *Engine) RegisterDescriptionContent(id assoc.DescriptionID, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.descriptions[id] = content
}

// Reset clears the selection, every registry and all pending effects. It
// must be called before registering the elements of a new step.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearAllSelections()
	e.stopTimers()
	e.epoch++

	e.model.Clear()
	clear(e.blocks)
	clear(e.lines)
	clear(e.descriptions)
	clear(e.actions)
	clear(e.hidden)
	clear(e.draggable)
	clear(e.marked)
	clear(e.hovered)
	e.dragging = ""

	e.descriptionActive = false
	e.sink.ShowPlaceholder()
}

// Close cancels pending effects. The engine stays usable.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimers()
	e.epoch++
}

// State is a snapshot of the interaction state.
type State struct {
	SelectedLineID    assoc.LineID
	HighlightedLines  []assoc.LineID
	HighlightedBlocks []assoc.BlockID
	DescriptionActive bool
}

// Idle reports whether no line is selected.
func (s State) Idle() bool { return s.SelectedLineID == "" }

// State returns a copy of the current interaction state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		SelectedLineID:    e.selected,
		HighlightedLines:  e.highlightedLines.values(),
		HighlightedBlocks: e.highlightedBlocks.values(),
		DescriptionActive: e.descriptionActive,
	}
}

// BlockInfo describes a registered block.
type BlockInfo struct {
	ID                assoc.BlockID  `json:"id"`
	AssociatedLineIDs []assoc.LineID `json:"associatedLineIds"`
	IsHighlighted     bool           `json:"isHighlighted"`
	IsVisible         bool           `json:"isVisible"`
}

// BlockInfo returns what the engine knows about a block. The second
// result is false for unknown ids.
func (e *Engine) BlockInfo(id assoc.BlockID) (BlockInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.blocks[id]; !ok {
		return BlockInfo{}, false
	}
	return BlockInfo{
		ID:                id,
		AssociatedLineIDs: e.model.AssociatedLines(id),
		IsHighlighted:     e.highlightedBlocks.has(id),
		IsVisible:         !e.hidden[id],
	}, true
}

// AssociatedLines returns the lines declared by a registered block.
func (e *Engine) AssociatedLines(id assoc.BlockID) []assoc.LineID {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.model.AssociatedLines(id)
}

// LineAssociation returns the association of a registered line.
func (e *Engine) LineAssociation(id assoc.LineID) (assoc.LineAssociation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.model.LineAssociation(id)
}

// Description returns registered description content.
func (e *Engine) Description(id assoc.DescriptionID) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	content, ok := e.descriptions[id]
	return content, ok
}

func (e *Engine) blockTarget(id assoc.BlockID, en entry) Target {
	return Target{Kind: TargetBlock, ID: string(id), Handle: en.handle}
}

func (e *Engine) lineTarget(id assoc.LineID, en entry) Target {
	return Target{Kind: TargetLine, ID: string(id), Handle: en.handle}
}

// addBlockClass and friends skip unregistered ids. Caller must hold e.mu.
func (e *Engine) addBlockClass(id assoc.BlockID, c Class) {
	if en, ok := e.blocks[id]; ok {
		e.sink.AddClass(e.blockTarget(id, en), c)
	}
}

func (e *Engine) removeBlockClass(id assoc.BlockID, c Class) {
	if en, ok := e.blocks[id]; ok {
		e.sink.RemoveClass(e.blockTarget(id, en), c)
	}
}

func (e *Engine) addLineClass(id assoc.LineID, c Class) {
	if en, ok := e.lines[id]; ok {
		e.sink.AddClass(e.lineTarget(id, en), c)
	}
}

func (e *Engine) removeLineClass(id assoc.LineID, c Class) {
	if en, ok := e.lines[id]; ok {
		e.sink.RemoveClass(e.lineTarget(id, en), c)
	}
}
