package codelesson

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/livetemplate/codelesson/internal/security"
)

// ValidationMode controls what happens to lessons that fail Validate.
type ValidationMode string

const (
	ValidationOff    ValidationMode = "off"    // skip validation
	ValidationWarn   ValidationMode = "warn"   // log problems and serve the lesson
	ValidationStrict ValidationMode = "strict" // refuse to serve the lesson
)

// ParseValidationMode parses a mode name; empty means warn.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch m := ValidationMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ValidationWarn, nil
	case ValidationOff, ValidationWarn, ValidationStrict:
		return m, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q (want off, warn or strict)", s)
	}
}

// Validate checks a lesson for problems the viewer would otherwise ignore
// silently: duplicate ids, dangling line links, line/block links that only
// go one way, unknown block types and actions, unsafe media URLs.
// The result is a criterio.FieldErrors or nil.
func (l *Lesson) Validate() error {
	errs := []error{
		criterio.Run("exampleId", l.ID, required),
		criterio.Run("metadata.title", l.Metadata.Title, required),
	}
	if len(l.BigSteps) == 0 {
		errs = append(errs, criterio.NewFieldErrors("bigSteps", fmt.Errorf("at least one step is required")))
	}
	for bi := range l.BigSteps {
		errs = append(errs, l.validateBigStep(bi))
	}
	return criterio.ValidateStruct(errs...)
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

func (l *Lesson) validateBigStep(bi int) error {
	big := &l.BigSteps[bi]
	prefix := fmt.Sprintf("bigSteps[%d]", bi)

	var errs criterio.FieldErrorsBuilder
	if err := required(big.Title); err != nil {
		errs = errs.Append(prefix+".title", err)
	}
	if len(big.SmallSteps) == 0 {
		errs = errs.Append(prefix+".smallSteps", fmt.Errorf("at least one small step is required"))
	}
	steps := []error{errs.ToError()}
	for si := range big.SmallSteps {
		steps = append(steps, validateSmallStep(fmt.Sprintf("%s.smallSteps[%d]", prefix, si), &big.SmallSteps[si]))
	}
	return criterio.ValidateStruct(steps...)
}

// stepIndex resolves the ids declared in one small step.
type stepIndex struct {
	blocks       map[string]*Block
	display      map[string]*Block
	descriptions map[string]bool
	lines        map[string]CodeLine
	lineOrder    []string
}

func indexStep(step *SmallStep) stepIndex {
	idx := stepIndex{
		blocks:       make(map[string]*Block),
		display:      make(map[string]*Block),
		descriptions: make(map[string]bool),
		lines:        make(map[string]CodeLine),
	}
	for i := range step.Blocks.LeftArea {
		b := &step.Blocks.LeftArea[i]
		idx.blocks[b.ID] = b
		if !b.IsCode() {
			idx.display[b.ID] = b
		}
	}
	for i := range step.Blocks.RightArea {
		b := &step.Blocks.RightArea[i]
		if _, dup := idx.blocks[b.ID]; !dup {
			idx.blocks[b.ID] = b
		}
		if b.Type == BlockDescription {
			idx.descriptions[b.ID] = true
		}
	}
	for _, b := range codeBlocks(step) {
		for n := 1; n <= len(b.SourceLines()); n++ {
			cl := b.Line(n)
			if _, dup := idx.lines[cl.ID]; !dup {
				idx.lines[cl.ID] = cl
				idx.lineOrder = append(idx.lineOrder, cl.ID)
			}
		}
	}
	return idx
}

func codeBlocks(step *SmallStep) []*Block {
	var out []*Block
	for _, area := range [][]Block{step.Blocks.LeftArea, step.Blocks.RightArea} {
		for i := range area {
			if area[i].IsCode() {
				out = append(out, &area[i])
			}
		}
	}
	return out
}

func validateSmallStep(prefix string, step *SmallStep) error {
	var errs criterio.FieldErrorsBuilder
	if err := required(step.Title); err != nil {
		errs = errs.Append(prefix+".title", err)
	}

	idx := indexStep(step)
	seenBlocks := make(map[string]int)
	seenLines := make(map[string]string)

	for _, area := range []struct {
		name   string
		blocks []Block
	}{
		{"leftArea", step.Blocks.LeftArea},
		{"rightArea", step.Blocks.RightArea},
	} {
		for i := range area.blocks {
			b := &area.blocks[i]
			field := fmt.Sprintf("%s.blocks.%s[%d]", prefix, area.name, i)

			if line, dup := seenBlocks[b.ID]; dup {
				errs = errs.Append(field+".id", atLine(b, "duplicate block id %q (first declared at line %d)", b.ID, line))
			} else {
				seenBlocks[b.ID] = b.SourceLine()
			}
			if !slices.Contains(KnownBlockTypes, b.Type) {
				errs = errs.Append(field+".type", atLine(b, "unknown block type %q", b.Type))
			}

			switch b.Type {
			case BlockCode:
				errs = validateCodeBlock(errs, field, b, idx, seenLines)
			case BlockImage, BlockVideo:
				if err := security.ValidateMediaURL(b.Src); err != nil {
					errs = errs.Append(field+".src", atLine(b, "%v", err))
				}
			case BlockDemo:
				if b.UseIframe {
					if err := security.ValidateMediaURL(b.Src); err != nil {
						errs = errs.Append(field+".src", atLine(b, "%v", err))
					}
				}
			}

			if !b.IsCode() && b.Associations != nil {
				errs = validateReciprocity(errs, field, b, idx)
			}
			errs = validateActions(errs, field, b, idx)
		}
	}
	return errs.ToError()
}

func validateCodeBlock(errs criterio.FieldErrorsBuilder, field string, b *Block, idx stepIndex, seenLines map[string]string) criterio.FieldErrorsBuilder {
	lines := b.SourceLines()
	if len(b.CodeLines) > len(lines) {
		errs = errs.Append(field+".codeLines", atLine(b, "%d entries for %d source lines", len(b.CodeLines), len(lines)))
	}
	for n := 1; n <= len(lines); n++ {
		cl := b.Line(n)
		lineField := fmt.Sprintf("%s.codeLines[%d]", field, n-1)

		if owner, dup := seenLines[cl.ID]; dup {
			errs = errs.Append(lineField+".id", atLine(b, "duplicate line id %q (also in block %q)", cl.ID, owner))
		} else {
			seenLines[cl.ID] = b.ID
		}
		if cl.DisplayBlockID != "" {
			if _, ok := idx.display[cl.DisplayBlockID]; !ok {
				errs = errs.Append(lineField+".displayBlockId", atLine(b, "line %q points at %q, which is not a display block in this step", cl.ID, cl.DisplayBlockID))
			}
		}
		if cl.DescriptionID != "" && !idx.descriptions[cl.DescriptionID] {
			errs = errs.Append(lineField+".descriptionId", atLine(b, "line %q points at description %q, which is not in this step", cl.ID, cl.DescriptionID))
		}
	}
	return errs
}

// validateReciprocity checks that an explicit association list and the
// lines' displayBlockId agree in both directions.
func validateReciprocity(errs criterio.FieldErrorsBuilder, field string, b *Block, idx stepIndex) criterio.FieldErrorsBuilder {
	for i, lineID := range b.Associations {
		cl, ok := idx.lines[lineID]
		switch {
		case !ok:
			errs = errs.Append(fmt.Sprintf("%s.associations[%d]", field, i), atLine(b, "unknown line %q", lineID))
		case cl.DisplayBlockID != b.ID:
			errs = errs.Append(fmt.Sprintf("%s.associations[%d]", field, i), atLine(b, "line %q does not point back at block %q", lineID, b.ID))
		}
	}
	for _, lineID := range idx.lineOrder {
		if cl := idx.lines[lineID]; cl.DisplayBlockID == b.ID && !slices.Contains(b.Associations, lineID) {
			errs = errs.Append(field+".associations", atLine(b, "line %q points at block %q but is not listed", lineID, b.ID))
		}
	}
	return errs
}

func validateActions(errs criterio.FieldErrorsBuilder, field string, b *Block, idx stepIndex) criterio.FieldErrorsBuilder {
	for i, a := range b.Actions {
		actionField := fmt.Sprintf("%s.actions[%d]", field, i)
		if a.Event == "" {
			errs = errs.Append(actionField+".event", atLine(b, "is required"))
		}
		if !slices.Contains(KnownActions, a.Action) {
			errs = errs.Append(actionField+".action", atLine(b, "unknown action %q", a.Action))
		}
		for _, target := range a.Targets {
			if _, ok := idx.display[target]; !ok {
				errs = errs.Append(actionField+".targets", atLine(b, "unknown target block %q", target))
			}
		}
	}
	return errs
}

func atLine(b *Block, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if line := b.SourceLine(); line > 0 {
		return fmt.Errorf("line %d: %s", line, msg)
	}
	return fmt.Errorf("%s", msg)
}
