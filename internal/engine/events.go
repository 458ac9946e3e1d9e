package engine

import "github.com/livetemplate/codelesson/internal/assoc"

// BlockHover handles the pointer entering or leaving a display block.
// Block hover is ignored while a line is selected.
func (e *Engine) BlockHover(id assoc.BlockID, enter bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.selected != "" {
		return
	}
	if _, ok := e.blocks[id]; !ok {
		e.log.Debug().Str("block", string(id)).Msg("hover on unknown block")
		return
	}

	lines := e.model.AssociatedLines(id)
	if enter {
		e.addBlockClass(id, ClassHighlightHover)
		for _, l := range lines {
			e.addLineClass(l, ClassLineHover)
		}
		return
	}
	e.removeBlockClass(id, ClassHighlightHover)
	for _, l := range lines {
		e.removeLineClass(l, ClassLineHover)
	}
}

// BlockClick pins a block and all of its lines. The first registered line
// in declaration order becomes the selected line and its description is
// shown; a block without lines is pinned alone and the description is left
// as it is.
func (e *Engine) BlockClick(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.blocks[id]; !ok {
		e.log.Debug().Str("block", string(id)).Msg("click on unknown block")
		return
	}
	e.clearAllSelections()
	e.selectBlock(id)
}

// selectBlock applies the block click highlight on a cleared state.
// Caller must hold e.mu.
func (e *Engine) selectBlock(id assoc.BlockID) {
	var first assoc.LineID
	for _, l := range e.model.AssociatedLines(id) {
		if _, ok := e.lines[l]; !ok {
			continue
		}
		e.addLineClass(l, ClassLineSelected)
		e.highlightedLines.add(l)
		if first == "" {
			first = l
		}
	}

	e.addBlockClass(id, ClassHighlightPermanent)
	e.highlightedBlocks.add(id)

	if first != "" {
		e.selected = first
		e.showDescriptionForLine(first)
	}
}

// LineHover handles the pointer entering or leaving a code line. Leaving
// removes exactly the markers entering applied, whatever the selection
// did in between.
func (e *Engine) LineHover(id assoc.LineID, enter bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.lines[id]; !ok {
		e.log.Debug().Str("line", string(id)).Msg("hover on unknown line")
		return
	}

	if !enter {
		e.unhoverLine(id)
		return
	}
	e.unhoverLine(id)

	if e.selected != "" {
		if id == e.selected {
			return
		}
		e.addLineClass(id, ClassLineHoverOnSelected)
		e.hovered[id] = hoverMark{class: ClassLineHoverOnSelected}
		return
	}

	mark := hoverMark{class: ClassLineHover}
	e.addLineClass(id, ClassLineHover)
	a, _ := e.model.LineAssociation(id)
	if target := a.DisplayTargetID; target != "" && !e.highlightedBlocks.has(target) {
		e.addBlockClass(target, ClassHighlightHover)
		mark.block = target
	}
	e.hovered[id] = mark
}

// unhoverLine removes the markers recorded for a hovered line.
// Caller must hold e.mu.
func (e *Engine) unhoverLine(id assoc.LineID) {
	mark, ok := e.hovered[id]
	if !ok {
		return
	}
	delete(e.hovered, id)
	e.removeLineClass(id, mark.class)
	if mark.block != "" {
		e.removeBlockClass(mark.block, ClassHighlightHover)
	}
}

// LineClick selects a line, or clears the selection when the line is
// already selected.
func (e *Engine) LineClick(id assoc.LineID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.lines[id]; !ok {
		e.log.Debug().Str("line", string(id)).Msg("click on unknown line")
		return
	}

	if e.selected == id {
		e.clearAllSelections()
		e.showPlaceholder()
		return
	}

	e.clearAllSelections()
	e.selected = id
	e.addLineClass(id, ClassLineSelected)
	e.removeLineClass(id, ClassLineHoverOnSelected)
	e.highlightedLines.add(id)

	if a, _ := e.model.LineAssociation(id); a.HasTarget() {
		if _, ok := e.blocks[a.DisplayTargetID]; ok {
			e.addBlockClass(a.DisplayTargetID, ClassHighlightPermanent)
			e.highlightedBlocks.add(a.DisplayTargetID)
		}
	}
	e.showDescriptionForLine(id)
}

// ClearAllSelections unpins every highlighted line and block and drops
// the selection. It is safe to call repeatedly.
func (e *Engine) ClearAllSelections() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearAllSelections()
}

func (e *Engine) clearAllSelections() {
	for _, l := range e.highlightedLines.values() {
		e.removeLineClass(l, ClassLineSelected)
		e.removeLineClass(l, ClassLineHover)
		e.removeLineClass(l, ClassLineHoverOnSelected)
	}
	e.highlightedLines.clear()
	e.selected = ""

	for _, b := range e.highlightedBlocks.values() {
		e.removeBlockClass(b, ClassHighlightPermanent)
		e.removeBlockClass(b, ClassHighlightHover)
	}
	e.highlightedBlocks.clear()
}

// ShowDescriptionForLine shows the description a line points at, or the
// placeholder when there is none.
func (e *Engine) ShowDescriptionForLine(id assoc.LineID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.showDescriptionForLine(id)
}

func (e *Engine) showDescriptionForLine(id assoc.LineID) {
	a, _ := e.model.LineAssociation(id)
	if a.HasDescription() {
		if content, ok := e.descriptions[a.DescriptionID]; ok {
			e.descriptionActive = true
			e.sink.ShowDescription(content)
			return
		}
	}
	e.showPlaceholder()
}

func (e *Engine) showPlaceholder() {
	e.descriptionActive = false
	e.sink.ShowPlaceholder()
}
