package engine_test

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/codelesson/internal/assoc"
	"github.com/livetemplate/codelesson/internal/engine"
	"github.com/livetemplate/codelesson/internal/engine/enginetest"
)

func newEngine(t *testing.T) (*engine.Engine, *enginetest.Recorder, *enginetest.ManualScheduler) {
	t.Helper()
	rec := enginetest.NewRecorder()
	sched := enginetest.NewManualScheduler()
	cfg := engine.DefaultConfig()
	cfg.Scheduler = sched
	return engine.New(rec, cfg), rec, sched
}

// registerLesson registers b1 [l1 l2], b2 [], l1 -> b1/d1, l2 -> b1,
// l3 with nothing, and d1.
func registerLesson(e *engine.Engine) {
	e.Reset()
	e.RegisterBlock("b1", []assoc.LineID{"l1", "l2"}, "#b1")
	e.RegisterBlock("b2", nil, "#b2")
	e.RegisterCodeLine("l1", assoc.LineAssociation{DisplayTargetID: "b1", DescriptionID: "d1"}, "#l1")
	e.RegisterCodeLine("l2", assoc.LineAssociation{DisplayTargetID: "b1"}, "#l2")
	e.RegisterCodeLine("l3", assoc.LineAssociation{}, "#l3")
	e.RegisterDescriptionContent("d1", "explains b1")
}

func TestBlockClickSelectsFirstLine(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.BlockClick("b1")

	assert.True(t, rec.LineHas("l1", engine.ClassLineSelected))
	assert.True(t, rec.LineHas("l2", engine.ClassLineSelected))
	assert.True(t, rec.BlockHas("b1", engine.ClassHighlightPermanent))

	st := e.State()
	assert.Equal(t, assoc.LineID("l1"), st.SelectedLineID)
	assert.Equal(t, []assoc.LineID{"l1", "l2"}, st.HighlightedLines)
	assert.Equal(t, []assoc.BlockID{"b1"}, st.HighlightedBlocks)
	assert.True(t, st.DescriptionActive)

	content, active := rec.Description()
	assert.True(t, active)
	assert.Equal(t, "explains b1", content)
}

func TestClickSelectedLineClearsEverything(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.BlockClick("b1")

	e.LineClick("l1")

	st := e.State()
	assert.True(t, st.Idle())
	assert.Empty(t, st.HighlightedLines)
	assert.Empty(t, st.HighlightedBlocks)
	assert.False(t, st.DescriptionActive)

	for _, id := range []string{"l1", "l2"} {
		assert.Empty(t, rec.Classes(engine.TargetLine, id), "line %s", id)
	}
	assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"))

	_, active := rec.Description()
	assert.False(t, active, "placeholder expected")
}

func TestLineClickWithoutAssociations(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.LineClick("l3")

	st := e.State()
	assert.Equal(t, assoc.LineID("l3"), st.SelectedLineID)
	assert.Equal(t, []assoc.LineID{"l3"}, st.HighlightedLines)
	assert.Empty(t, st.HighlightedBlocks)
	assert.True(t, rec.LineHas("l3", engine.ClassLineSelected))

	_, active := rec.Description()
	assert.False(t, active)
}

func TestBlockHoverSuppressedWhileSelected(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.BlockClick("b1")
	rec.ClearLog()

	e.BlockHover("b2", true)
	e.BlockHover("b2", false)

	assert.Empty(t, rec.Mutations())
	assert.Empty(t, rec.Classes(engine.TargetBlock, "b2"))
}

func TestSelectionExclusivity(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.RegisterBlock("b3", []assoc.LineID{"l4"}, "#b3")
	e.RegisterCodeLine("l4", assoc.LineAssociation{DisplayTargetID: "b3"}, "#l4")

	blocks := []assoc.BlockID{"b1", "b2", "b3", "nope"}
	lines := []assoc.LineID{"l1", "l2", "l3", "l4", "nope"}
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		switch rng.IntN(5) {
		case 0:
			e.BlockClick(blocks[rng.IntN(len(blocks))])
		case 1:
			e.LineClick(lines[rng.IntN(len(lines))])
		case 2:
			e.BlockHover(blocks[rng.IntN(len(blocks))], rng.IntN(2) == 0)
		case 3:
			e.LineHover(lines[rng.IntN(len(lines))], rng.IntN(2) == 0)
		case 4:
			e.ClearAllSelections()
		}

		st := e.State()
		switch len(st.HighlightedBlocks) {
		case 0:
			if st.Idle() {
				require.Empty(t, st.HighlightedLines, "step %d", i)
			} else {
				require.Equal(t, []assoc.LineID{st.SelectedLineID}, st.HighlightedLines, "step %d", i)
			}
		case 1:
			b := st.HighlightedBlocks[0]
			if len(st.HighlightedLines) > 1 {
				require.ElementsMatch(t, e.AssociatedLines(b), st.HighlightedLines, "step %d", i)
			}
			if !st.Idle() {
				require.Contains(t, st.HighlightedLines, st.SelectedLineID, "step %d", i)
			}
		default:
			t.Fatalf("step %d: %d blocks pinned", i, len(st.HighlightedBlocks))
		}

		for _, l := range lines {
			pinned := false
			for _, h := range st.HighlightedLines {
				pinned = pinned || h == l
			}
			require.Equal(t, pinned, rec.LineHas(string(l), engine.ClassLineSelected), "step %d line %s", i, l)
		}
		for _, b := range blocks {
			pinned := len(st.HighlightedBlocks) == 1 && st.HighlightedBlocks[0] == b
			require.Equal(t, pinned, rec.BlockHas(string(b), engine.ClassHighlightPermanent), "step %d block %s", i, b)
		}
	}
}

func TestToggleReturnsToIdle(t *testing.T) {
	for _, line := range []assoc.LineID{"l1", "l2", "l3"} {
		t.Run(string(line), func(t *testing.T) {
			e, rec, _ := newEngine(t)
			registerLesson(e)

			e.LineClick(line)
			e.LineClick(line)

			st := e.State()
			assert.True(t, st.Idle())
			assert.Empty(t, st.HighlightedLines)
			assert.Empty(t, st.HighlightedBlocks)
			assert.False(t, st.DescriptionActive)
			for _, id := range []string{"l1", "l2", "l3"} {
				assert.Empty(t, rec.Classes(engine.TargetLine, id))
			}
			assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"))
		})
	}
}

func TestBlockHoverSuppressedForEveryBlock(t *testing.T) {
	for _, line := range []assoc.LineID{"l1", "l2", "l3"} {
		t.Run(string(line), func(t *testing.T) {
			e, rec, _ := newEngine(t)
			registerLesson(e)
			e.LineClick(line)
			rec.ClearLog()

			for _, b := range []assoc.BlockID{"b1", "b2"} {
				e.BlockHover(b, true)
				e.BlockHover(b, false)
			}

			assert.Empty(t, rec.Mutations())
		})
	}
}

func TestResetForgetsEverything(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.BlockClick("b1")

	e.Reset()
	rec.ClearLog()

	_, ok := e.BlockInfo("b1")
	assert.False(t, ok)
	assert.Empty(t, e.AssociatedLines("b1"))
	_, ok = e.LineAssociation("l1")
	assert.False(t, ok)
	_, ok = e.Description("d1")
	assert.False(t, ok)

	st := e.State()
	assert.True(t, st.Idle())
	assert.Empty(t, st.HighlightedLines)
	assert.Empty(t, st.HighlightedBlocks)

	e.BlockClick("b1")
	e.LineClick("l1")
	e.LineHover("l2", true)
	assert.Empty(t, rec.Mutations())
}

func TestResetClearsPinnedClasses(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.BlockClick("b1")

	e.Reset()

	assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"))
	assert.Empty(t, rec.Classes(engine.TargetLine, "l1"))
	_, active := rec.Description()
	assert.False(t, active)
}

func TestBlockHoverIdle(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.BlockHover("b1", true)
	assert.True(t, rec.BlockHas("b1", engine.ClassHighlightHover))
	assert.True(t, rec.LineHas("l1", engine.ClassLineHover))
	assert.True(t, rec.LineHas("l2", engine.ClassLineHover))
	assert.True(t, e.State().Idle())

	e.BlockHover("b1", false)
	assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"))
	assert.Empty(t, rec.Classes(engine.TargetLine, "l1"))
	assert.Empty(t, rec.Classes(engine.TargetLine, "l2"))
}

func TestLineHoverIdle(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.LineHover("l2", true)
	assert.True(t, rec.LineHas("l2", engine.ClassLineHover))
	assert.True(t, rec.BlockHas("b1", engine.ClassHighlightHover))
	assert.False(t, rec.LineHas("l1", engine.ClassLineHover), "no fan-out to sibling lines")

	e.LineHover("l2", false)
	assert.Empty(t, rec.Classes(engine.TargetLine, "l2"))
	assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"))
}

func TestLineHoverWhileOtherSelected(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.LineClick("l3")

	e.LineHover("l1", true)
	assert.Equal(t, []engine.Class{engine.ClassLineHoverOnSelected}, rec.Classes(engine.TargetLine, "l1"))
	assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"), "no block fan-out while selected")

	e.LineHover("l1", false)
	assert.Empty(t, rec.Classes(engine.TargetLine, "l1"))
	assert.Equal(t, assoc.LineID("l3"), e.State().SelectedLineID)
}

func TestLineHoverLeaveAfterClear(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.LineClick("l1")

	e.LineHover("l3", true)
	require.True(t, rec.LineHas("l3", engine.ClassLineHoverOnSelected))
	e.ClearAllSelections()
	e.LineHover("l3", false)

	assert.Empty(t, rec.Classes(engine.TargetLine, "l3"))
	assert.True(t, e.State().Idle())
}

func TestLineHoverLeaveAfterFocus(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.LineHover("l3", true)
	require.True(t, rec.LineHas("l3", engine.ClassLineHover))
	e.FocusBlock("b1")
	e.LineHover("l3", false)

	assert.Empty(t, rec.Classes(engine.TargetLine, "l3"))
	assert.Equal(t, assoc.LineID("l1"), e.State().SelectedLineID)
	assert.True(t, rec.BlockHas("b1", engine.ClassHighlightPermanent))
}

func TestLineHoverLeaveAfterClickingHoveredLine(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.LineHover("l2", true)
	e.LineClick("l2")
	e.LineHover("l2", false)

	assert.Equal(t, []engine.Class{engine.ClassLineSelected}, rec.Classes(engine.TargetLine, "l2"))
	assert.Equal(t, []engine.Class{engine.ClassHighlightPermanent}, rec.Classes(engine.TargetBlock, "b1"))
}

func TestHoverSelectedLineIsNoop(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.LineClick("l1")
	rec.ClearLog()

	e.LineHover("l1", true)
	e.LineHover("l1", false)

	assert.Empty(t, rec.Mutations())
}

func TestBlockClickWithoutLines(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.RegisterCodeLine("l4", assoc.LineAssociation{DisplayTargetID: "b2"}, "#l4")
	rec.ClearLog()

	e.BlockClick("b2")

	st := e.State()
	assert.True(t, st.Idle())
	assert.Equal(t, []assoc.BlockID{"b2"}, st.HighlightedBlocks)
	assert.True(t, rec.BlockHas("b2", engine.ClassHighlightPermanent))
	for _, m := range rec.Mutations() {
		assert.NotEqual(t, "description", m.Op)
		assert.NotEqual(t, "placeholder", m.Op)
	}

	// pinned target keeps its permanent highlight through line hover
	rec.ClearLog()
	e.LineHover("l4", true)
	e.LineHover("l4", false)
	for _, m := range rec.Mutations() {
		assert.NotEqual(t, "b2", m.ID)
	}
	assert.True(t, rec.BlockHas("b2", engine.ClassHighlightPermanent))
}

func TestBlockClickSkipsUnregisteredLines(t *testing.T) {
	e, rec, _ := newEngine(t)
	e.Reset()
	e.RegisterBlock("b1", []assoc.LineID{"ghost", "l2"}, "#b1")
	e.RegisterCodeLine("l2", assoc.LineAssociation{DisplayTargetID: "b1", DescriptionID: "d2"}, "#l2")
	e.RegisterDescriptionContent("d2", "second")

	e.BlockClick("b1")

	st := e.State()
	assert.Equal(t, assoc.LineID("l2"), st.SelectedLineID)
	assert.Equal(t, []assoc.LineID{"l2"}, st.HighlightedLines)
	content, _ := rec.Description()
	assert.Equal(t, "second", content)
}

func TestLineClickMovesSelection(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.LineClick("l1")
	assert.True(t, rec.BlockHas("b1", engine.ClassHighlightPermanent))

	e.LineClick("l3")

	assert.Empty(t, rec.Classes(engine.TargetLine, "l1"))
	assert.Empty(t, rec.Classes(engine.TargetBlock, "b1"))
	assert.True(t, rec.LineHas("l3", engine.ClassLineSelected))
	assert.Equal(t, assoc.LineID("l3"), e.State().SelectedLineID)
}

func TestClickClearsBeforeSelecting(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.LineClick("l1")
	rec.ClearLog()

	e.LineClick("l2")

	muts := rec.Mutations()
	lastRemove, firstAdd := -1, len(muts)
	for i, m := range muts {
		if m.Op == "remove" && m.ID == "l1" {
			lastRemove = i
		}
		if m.Op == "add" && i < firstAdd {
			firstAdd = i
		}
	}
	require.GreaterOrEqual(t, lastRemove, 0)
	assert.Less(t, lastRemove, firstAdd)
}

func TestUnknownIdentitiesAreNoops(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	rec.ClearLog()

	e.BlockHover("missing", true)
	e.BlockClick("missing")
	e.LineHover("missing", true)
	e.LineClick("missing")
	e.FocusBlock("missing")
	e.Show("missing", engine.AnimationFade)
	e.Blink("missing", 2)

	assert.Empty(t, rec.Mutations())
	_, ok := e.BlockInfo("missing")
	assert.False(t, ok)
}

func TestDescriptionResolution(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.RegisterCodeLine("l5", assoc.LineAssociation{DescriptionID: "unregistered"}, "#l5")

	tests := []struct {
		line    assoc.LineID
		want    string
		wantAct bool
	}{
		{line: "l1", want: "explains b1", wantAct: true},
		{line: "l2", want: "", wantAct: false},
		{line: "l5", want: "", wantAct: false},
		{line: "missing", want: "", wantAct: false},
	}
	for _, tt := range tests {
		t.Run(string(tt.line), func(t *testing.T) {
			e.ShowDescriptionForLine(tt.line)
			got, active := rec.Description()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAct, active)
			assert.Equal(t, tt.wantAct, e.State().DescriptionActive)
		})
	}
}

func TestRegistrationIsIdempotent(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)
	e.RegisterBlock("b1", []assoc.LineID{"l2"}, "#b1-new")
	e.RegisterDescriptionContent("d1", "rewritten")

	info, ok := e.BlockInfo("b1")
	require.True(t, ok)
	assert.Equal(t, []assoc.LineID{"l2"}, info.AssociatedLineIDs)

	e.BlockClick("b1")
	e.BlockClick("b1")
	assert.Equal(t, []assoc.BlockID{"b1"}, e.State().HighlightedBlocks)
	assert.Equal(t, []assoc.LineID{"l2"}, e.State().HighlightedLines)

	e.LineClick("l1")
	content, _ := rec.Description()
	assert.Equal(t, "rewritten", content)
}

func TestBlockInfo(t *testing.T) {
	e, _, _ := newEngine(t)
	registerLesson(e)

	info, ok := e.BlockInfo("b1")
	require.True(t, ok)
	assert.Equal(t, engine.BlockInfo{
		ID:                "b1",
		AssociatedLineIDs: []assoc.LineID{"l1", "l2"},
		IsHighlighted:     false,
		IsVisible:         true,
	}, info)

	e.LineClick("l1")
	e.Hide("b1", engine.AnimationFade)
	info, _ = e.BlockInfo("b1")
	assert.True(t, info.IsHighlighted)
	assert.False(t, info.IsVisible)
}

func TestShowHideToggle(t *testing.T) {
	e, rec, sched := newEngine(t)
	registerLesson(e)

	e.Hide("b1", engine.AnimationSlide)
	fx := rec.Effects("b1")
	require.Len(t, fx, 1)
	assert.Equal(t, engine.Effect{
		Kind:      engine.EffectHide,
		Phase:     engine.PhaseStart,
		Animation: engine.AnimationSlide,
		Duration:  300 * time.Millisecond,
		Easing:    "ease-in-out",
	}, fx[0])

	sched.Advance(299 * time.Millisecond)
	assert.Len(t, rec.Effects("b1"), 1)
	sched.Advance(time.Millisecond)
	fx = rec.Effects("b1")
	require.Len(t, fx, 2)
	assert.Equal(t, engine.PhaseEnd, fx[1].Phase)

	e.Toggle("b1", engine.AnimationScale)
	fx = rec.Effects("b1")
	require.Len(t, fx, 3)
	assert.Equal(t, engine.EffectShow, fx[2].Kind)
	info, _ := e.BlockInfo("b1")
	assert.True(t, info.IsVisible)

	sched.Advance(10 * time.Millisecond)
	fx = rec.Effects("b1")
	require.Len(t, fx, 4)
	assert.Equal(t, engine.Effect{Kind: engine.EffectShow, Phase: engine.PhaseEnd, Animation: engine.AnimationScale}, fx[3])
	assert.Zero(t, sched.Pending())
}

func TestMarkHiddenThenToggleShows(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.MarkHidden("b2")
	e.MarkHidden("nope")
	assert.Empty(t, rec.Effects("b2"))
	info, _ := e.BlockInfo("b2")
	assert.False(t, info.IsVisible)

	e.Toggle("b2", engine.AnimationFade)
	fx := rec.Effects("b2")
	require.Len(t, fx, 1)
	assert.Equal(t, engine.EffectShow, fx[0].Kind)
}

func TestBlink(t *testing.T) {
	tests := []struct {
		name  string
		times int
		ticks int
	}{
		{name: "default", times: 0, ticks: 6},
		{name: "twice", times: 2, ticks: 4},
		{name: "capped", times: 1000, ticks: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec, sched := newEngine(t)
			registerLesson(e)

			e.Blink("b1", tt.times)
			sched.Advance(time.Duration(tt.ticks) * 200 * time.Millisecond)

			fx := rec.Effects("b1")
			require.Len(t, fx, tt.ticks+1)
			for i := 0; i < tt.ticks; i++ {
				want := 0.3
				if i%2 == 1 {
					want = 1
				}
				assert.Equal(t, want, fx[i].Opacity, "tick %d", i)
			}
			assert.Equal(t, 1.0, fx[tt.ticks].Opacity)
			assert.Zero(t, sched.Pending())
		})
	}
}

func TestDeferredEffectsDroppedAfterReset(t *testing.T) {
	e, rec, sched := newEngine(t)
	registerLesson(e)
	e.Hide("b1", engine.AnimationFade)
	e.Blink("b2", 3)

	registerLesson(e)
	rec.ClearLog()
	sched.Advance(5 * time.Second)

	assert.Empty(t, rec.Mutations())
}

func TestDeferredEffectsDroppedAfterReregistration(t *testing.T) {
	e, rec, sched := newEngine(t)
	registerLesson(e)
	e.Shake("b1")

	e.RegisterBlock("b1", []assoc.LineID{"l1", "l2"}, "#b1-new")
	rec.ClearLog()
	sched.Advance(time.Second)

	assert.Empty(t, rec.Mutations())
}

func TestDeferredEffectsDroppedAfterClose(t *testing.T) {
	e, rec, sched := newEngine(t)
	registerLesson(e)
	e.Pulse("b1")

	e.Close()
	rec.ClearLog()
	sched.Advance(2 * time.Second)

	assert.Empty(t, rec.Mutations())
}

func TestFocusBlock(t *testing.T) {
	e, rec, sched := newEngine(t)
	registerLesson(e)
	e.LineClick("l3")

	e.FocusBlock("b1")

	st := e.State()
	assert.Equal(t, assoc.LineID("l1"), st.SelectedLineID)
	assert.Equal(t, []assoc.BlockID{"b1"}, st.HighlightedBlocks)
	assert.False(t, rec.LineHas("l3", engine.ClassLineSelected))

	fx := rec.Effects("b1")
	require.Len(t, fx, 2)
	assert.Equal(t, engine.Effect{Kind: engine.EffectScroll, Smooth: true}, fx[0])
	assert.Equal(t, engine.AnimationPulse, fx[1].Animation)
	assert.Equal(t, engine.PhaseStart, fx[1].Phase)

	sched.Advance(time.Second)
	fx = rec.Effects("b1")
	require.Len(t, fx, 3)
	assert.Equal(t, engine.PhaseEnd, fx[2].Phase)
}

func TestDrag(t *testing.T) {
	e, rec, _ := newEngine(t)
	registerLesson(e)

	e.DragStart("b1")
	assert.Empty(t, rec.Effects("b1"), "drag needs enabling first")

	e.EnableDrag("b1")
	e.DragStart("b1")
	id, ok := e.Dragging()
	assert.True(t, ok)
	assert.Equal(t, assoc.BlockID("b1"), id)

	e.DragEnd("b1")
	_, ok = e.Dragging()
	assert.False(t, ok)

	fx := rec.Effects("b1")
	require.Len(t, fx, 3)
	assert.Equal(t, engine.Effect{Kind: engine.EffectDraggable, Enabled: true}, fx[0])
	assert.Equal(t, 0.5, fx[1].Opacity)
	assert.Equal(t, 1.0, fx[2].Opacity)

	e.DisableDrag("b1")
	e.DragStart("b1")
	assert.Len(t, rec.Effects("b1"), 4)
}

func TestTriggerActions(t *testing.T) {
	e, rec, sched := newEngine(t)
	registerLesson(e)
	e.RegisterActions("b1", []engine.Action{
		{Event: "click", Kind: engine.ActionToggleHighlight, Targets: []assoc.BlockID{"b2"}},
		{Event: "dblclick", Kind: engine.ActionHide, Targets: []assoc.BlockID{"b2", "missing"}},
	})

	assert.Equal(t, 1, e.TriggerActions("b1", "click"))
	assert.True(t, rec.BlockHas("b2", engine.ClassHighlight))
	e.TriggerActions("b1", "click")
	assert.False(t, rec.BlockHas("b2", engine.ClassHighlight))

	assert.Equal(t, 1, e.TriggerActions("b1", "dblclick"))
	sched.Advance(time.Second)
	info, _ := e.BlockInfo("b2")
	assert.False(t, info.IsVisible)

	assert.Zero(t, e.TriggerActions("b1", "mouseenter"))
	assert.Zero(t, e.TriggerActions("b2", "click"))
	assert.True(t, e.State().Idle(), "actions never select")
}

func TestConcurrentEvents(t *testing.T) {
	rec := enginetest.NewRecorder()
	cfg := engine.DefaultConfig()
	cfg.AnimationDuration = time.Millisecond
	cfg.BlinkInterval = time.Millisecond
	e := engine.New(rec, cfg)
	registerLesson(e)
	defer e.Close()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 200; i++ {
				switch rng.IntN(4) {
				case 0:
					e.BlockClick("b1")
				case 1:
					e.LineClick("l3")
				case 2:
					e.Toggle("b2", engine.AnimationFade)
				case 3:
					e.Blink("b1", 1)
				}
			}
		}(uint64(g))
	}
	wg.Wait()

	st := e.State()
	assert.LessOrEqual(t, len(st.HighlightedBlocks), 1)
}
