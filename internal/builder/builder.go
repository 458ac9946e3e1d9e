// Package builder turns one lesson step into pane markup and the
// registration records the interaction engine needs for it.
package builder

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"slices"
	"strings"

	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/assoc"
	"github.com/livetemplate/codelesson/internal/engine"
	"github.com/livetemplate/codelesson/internal/security"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("blocks").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
}).ParseFS(templateFS, "templates/*.tmpl"))

// DefaultPlaceholder is shown in the description area while nothing is
// selected.
const DefaultPlaceholder = "Click a code line or display block to see details"

// Options tune Build.
type Options struct {
	Placeholder string
}

// Tree is the rendered form of one step.
type Tree struct {
	LessonID        string              `json:"lessonId"`
	Position        codelesson.Position `json:"position"`
	BigTitle        string              `json:"bigTitle"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	DisplayHTML     template.HTML       `json:"displayHtml"`
	CodeHTML        template.HTML       `json:"codeHtml"`
	Placeholder     string              `json:"placeholder"`
	Blocks          []BlockRecord       `json:"blocks"`
	Lines           []LineRecord        `json:"lines"`
	Descriptions    []DescriptionRecord `json:"descriptions"`
	HasDescriptions bool                `json:"hasDescriptions"`
}

// BlockRecord registers one display block.
type BlockRecord struct {
	ID        assoc.BlockID   `json:"id"`
	Handle    string          `json:"handle"`
	Lines     []assoc.LineID  `json:"lines"`
	Actions   []engine.Action `json:"-"`
	Events    []string        `json:"events,omitempty"`
	Draggable bool            `json:"draggable,omitempty"`
	Hidden    bool            `json:"hidden,omitempty"`
}

// LineRecord registers one code line.
type LineRecord struct {
	ID          assoc.LineID          `json:"id"`
	Handle      string                `json:"handle"`
	Association assoc.LineAssociation `json:"association"`
}

// DescriptionRecord registers the rendered content of a description block.
type DescriptionRecord struct {
	ID   assoc.DescriptionID `json:"id"`
	HTML string              `json:"html"`
}

// Registrar receives the records of a Tree. *engine.Engine implements it.
type Registrar interface {
	Reset()
	RegisterBlock(id assoc.BlockID, lines []assoc.LineID, h engine.Handle)
	RegisterCodeLine(id assoc.LineID, a assoc.LineAssociation, h engine.Handle)
	RegisterDescriptionContent(id assoc.DescriptionID, content string)
	RegisterActions(id assoc.BlockID, actions []engine.Action)
	EnableDrag(id assoc.BlockID)
	MarkHidden(id assoc.BlockID)
}

var _ Registrar = (*engine.Engine)(nil)

// Register resets r and registers every record of the tree: blocks, then
// lines in source order, then descriptions, then actions and drag state.
func (t *Tree) Register(r Registrar) {
	r.Reset()
	for _, b := range t.Blocks {
		r.RegisterBlock(b.ID, b.Lines, b.Handle)
	}
	for _, l := range t.Lines {
		r.RegisterCodeLine(l.ID, l.Association, l.Handle)
	}
	for _, d := range t.Descriptions {
		r.RegisterDescriptionContent(d.ID, d.HTML)
	}
	for _, b := range t.Blocks {
		if len(b.Actions) > 0 {
			r.RegisterActions(b.ID, b.Actions)
		}
		if b.Draggable {
			r.EnableDrag(b.ID)
		}
		if b.Hidden {
			r.MarkHidden(b.ID)
		}
	}
}

// BlockHandle is the DOM id of a block wrapper.
func BlockHandle(id string) string { return "b-" + id }

// LineHandle is the DOM id of a code line.
func LineHandle(id string) string { return "l-" + id }

// NormalizeEvent maps lesson event names to DOM event names.
func NormalizeEvent(event string) string {
	switch event {
	case "hover":
		return "mouseenter"
	case "doubleclick":
		return "dblclick"
	default:
		return event
	}
}

// Build renders the step at pos.
func Build(lesson *codelesson.Lesson, pos codelesson.Position, opts Options) (*Tree, error) {
	big, small, err := lesson.Step(pos)
	if err != nil {
		return nil, err
	}
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}

	t := &Tree{
		LessonID:    lesson.ID,
		Position:    pos,
		BigTitle:    big.Title,
		Title:       small.Title,
		Description: small.Description,
		Placeholder: opts.Placeholder,
	}

	left := small.Blocks.LeftArea
	right := small.Blocks.RightArea
	pointing := linesByTarget(left, right)

	var display []blockView
	for i := range left {
		b := &left[i]
		if b.IsCode() {
			v, err := t.codeView(b)
			if err != nil {
				return nil, err
			}
			display = append(display, v)
			continue
		}
		rec := t.displayRecord(b, pointing)
		v, err := renderBlock(b, true, rec)
		if err != nil {
			return nil, err
		}
		display = append(display, v)
	}

	var code, others []blockView
	for i := range right {
		b := &right[i]
		switch b.Type {
		case codelesson.BlockCode:
			v, err := t.codeView(b)
			if err != nil {
				return nil, err
			}
			code = append(code, v)
		case codelesson.BlockDescription:
			html, err := contentHTML(b)
			if err != nil {
				return nil, fmt.Errorf("description %s: %w", b.ID, err)
			}
			t.Descriptions = append(t.Descriptions, DescriptionRecord{ID: assoc.DescriptionID(b.ID), HTML: html})
		default:
			v, err := renderBlock(b, false, nil)
			if err != nil {
				return nil, err
			}
			others = append(others, v)
		}
	}
	t.HasDescriptions = len(t.Descriptions) > 0

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "display-pane", struct{ Blocks []blockView }{display}); err != nil {
		return nil, fmt.Errorf("render display pane: %w", err)
	}
	t.DisplayHTML = template.HTML(buf.String())

	buf.Reset()
	if err := tmpl.ExecuteTemplate(&buf, "code-pane", struct {
		Code        []blockView
		Others      []blockView
		Placeholder string
	}{code, others, opts.Placeholder}); err != nil {
		return nil, fmt.Errorf("render code pane: %w", err)
	}
	t.CodeHTML = template.HTML(buf.String())

	return t, nil
}

// linesByTarget collects, per display block, the code lines whose
// displayBlockId points at it, in document order.
func linesByTarget(areas ...[]codelesson.Block) map[string][]assoc.LineID {
	out := make(map[string][]assoc.LineID)
	for _, area := range areas {
		for i := range area {
			b := &area[i]
			if !b.IsCode() {
				continue
			}
			for n := range len(b.SourceLines()) {
				cl := b.Line(n + 1)
				if cl.DisplayBlockID != "" {
					out[cl.DisplayBlockID] = append(out[cl.DisplayBlockID], assoc.LineID(cl.ID))
				}
			}
		}
	}
	return out
}

func (t *Tree) displayRecord(b *codelesson.Block, pointing map[string][]assoc.LineID) *BlockRecord {
	rec := BlockRecord{
		ID:        assoc.BlockID(b.ID),
		Handle:    BlockHandle(b.ID),
		Draggable: b.Draggable,
		Hidden:    b.Hidden,
	}
	if b.Associations != nil {
		for _, id := range b.Associations {
			rec.Lines = append(rec.Lines, assoc.LineID(id))
		}
	} else {
		rec.Lines = slices.Clone(pointing[b.ID])
	}
	for _, a := range b.Actions {
		ev := NormalizeEvent(a.Event)
		act := engine.Action{
			Event:     ev,
			Kind:      engine.ActionKind(a.Action),
			Animation: engine.ParseAnimation(a.Animation),
		}
		for _, target := range a.Targets {
			act.Targets = append(act.Targets, assoc.BlockID(target))
		}
		rec.Actions = append(rec.Actions, act)
		if !slices.Contains(rec.Events, ev) {
			rec.Events = append(rec.Events, ev)
		}
	}
	t.Blocks = append(t.Blocks, rec)
	return &t.Blocks[len(t.Blocks)-1]
}

type blockView struct {
	Handle       string
	ID           string
	Type         string
	Title        string
	Registered   bool
	Associations string
	Events       string
	Draggable    bool
	Hidden       bool
	Body         template.HTML
}

type lineView struct {
	Handle      string
	ID          string
	Number      int
	Target      string
	Description string
	Text        string
}

func (t *Tree) codeView(b *codelesson.Block) (blockView, error) {
	src := b.SourceLines()
	data := struct {
		Language      string
		LanguageClass string
		Lines         []lineView
	}{
		Language:      b.Language,
		LanguageClass: languageClass(b.Language),
	}
	for i, text := range src {
		cl := b.Line(i + 1)
		data.Lines = append(data.Lines, lineView{
			Handle:      LineHandle(cl.ID),
			ID:          cl.ID,
			Number:      i + 1,
			Target:      cl.DisplayBlockID,
			Description: cl.DescriptionID,
			Text:        text,
		})
		t.Lines = append(t.Lines, LineRecord{
			ID:     assoc.LineID(cl.ID),
			Handle: LineHandle(cl.ID),
			Association: assoc.LineAssociation{
				DisplayTargetID: assoc.BlockID(cl.DisplayBlockID),
				DescriptionID:   assoc.DescriptionID(cl.DescriptionID),
			},
		})
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, string(codelesson.BlockCode), data); err != nil {
		return blockView{}, fmt.Errorf("render code block %s: %w", b.ID, err)
	}
	return blockView{
		Handle: BlockHandle(b.ID),
		ID:     b.ID,
		Type:   string(b.Type),
		Title:  b.Title,
		Body:   template.HTML(buf.String()),
	}, nil
}

func languageClass(lang string) string {
	if lang == "" {
		return "plaintext"
	}
	return strings.ToLower(lang)
}

type mediaView struct {
	Type      string
	Content   string
	HTML      template.HTML
	UseIframe bool
	Src       template.URL
	Alt       string
	Caption   string
	Style     template.CSS
	Autoplay  bool
	Loop      bool
	Muted     bool
	Items     []string
	Ordered   bool
}

func renderBlock(b *codelesson.Block, registered bool, rec *BlockRecord) (blockView, error) {
	v := mediaView{
		Type:      string(b.Type),
		Content:   b.Content,
		UseIframe: b.UseIframe,
		Alt:       b.Alt,
		Caption:   b.Caption,
		Style:     sizeStyle(b.Width, b.Height),
		Autoplay:  b.Autoplay,
		Loop:      b.Loop,
		Muted:     b.Muted,
		Items:     b.Items,
		Ordered:   b.Ordered,
	}
	if b.Src != "" && security.ValidateMediaURL(b.Src) == nil {
		v.Src = template.URL(b.Src)
	}
	switch b.Type {
	case codelesson.BlockHTML, codelesson.BlockDemo, codelesson.BlockDescription:
		html, err := contentHTML(b)
		if err != nil {
			return blockView{}, fmt.Errorf("block %s: %w", b.ID, err)
		}
		v.HTML = template.HTML(html)
	}

	name := string(b.Type)
	if tmpl.Lookup(name) == nil || b.Type == codelesson.BlockCode {
		name = "unknown"
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return blockView{}, fmt.Errorf("render block %s: %w", b.ID, err)
	}

	view := blockView{
		Handle:     BlockHandle(b.ID),
		ID:         b.ID,
		Type:       string(b.Type),
		Title:      b.Title,
		Registered: registered,
		Body:       template.HTML(buf.String()),
	}
	if rec != nil {
		view.Associations = joinLines(rec.Lines)
		view.Events = strings.Join(rec.Events, " ")
		view.Draggable = rec.Draggable
		view.Hidden = rec.Hidden
	}
	return view, nil
}

func contentHTML(b *codelesson.Block) (string, error) {
	if b.Format == "markdown" {
		return codelesson.RenderMarkdown(b.Content)
	}
	return b.Content, nil
}

func joinLines(ids []assoc.LineID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " ")
}

var sizeRe = regexp.MustCompile(`^(auto|\d+(\.\d+)?(px|%|em|rem|vw|vh)?)$`)

// sizeStyle builds an inline width/height declaration, dropping values
// that are not plain CSS lengths.
func sizeStyle(width, height string) template.CSS {
	var parts []string
	if width != "" && sizeRe.MatchString(width) {
		parts = append(parts, "width: "+width)
	}
	if height != "" && sizeRe.MatchString(height) {
		parts = append(parts, "height: "+height)
	}
	return template.CSS(strings.Join(parts, "; "))
}
