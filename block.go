package codelesson

import (
	"fmt"
	"strings"
)

// BlockType names how a block renders.
type BlockType string

const (
	BlockCode        BlockType = "code-block"
	BlockDescription BlockType = "description"
	BlockText        BlockType = "text"
	BlockHTML        BlockType = "html-container"
	BlockImage       BlockType = "image"
	BlockVideo       BlockType = "video"
	BlockList        BlockType = "list"
	BlockDemo        BlockType = "interactive-demo"
)

// KnownBlockTypes lists every block type the viewer renders.
var KnownBlockTypes = []BlockType{
	BlockCode, BlockDescription, BlockText, BlockHTML,
	BlockImage, BlockVideo, BlockList, BlockDemo,
}

// Block is a renderable unit in either pane.
type Block struct {
	ID      string    `yaml:"id" json:"id"`
	Type    BlockType `yaml:"type" json:"type"`
	Title   string    `yaml:"title,omitempty" json:"title,omitempty"`
	Content string    `yaml:"content,omitempty" json:"content,omitempty"`
	Format  string    `yaml:"format,omitempty" json:"format,omitempty"` // html (default) or markdown

	// Code blocks
	Language  string     `yaml:"language,omitempty" json:"language,omitempty"`
	CodeLines []CodeLine `yaml:"codeLines,omitempty" json:"codeLines,omitempty"`

	// Display blocks. Associations lists the code lines a block explains;
	// when nil the lines pointing at the block are used.
	Associations []string `yaml:"associations,omitempty" json:"associations,omitempty"`
	Actions      []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
	Draggable    bool     `yaml:"draggable,omitempty" json:"draggable,omitempty"`
	Hidden       bool     `yaml:"hidden,omitempty" json:"hidden,omitempty"`

	// Media
	Src       string `yaml:"src,omitempty" json:"src,omitempty"`
	Alt       string `yaml:"alt,omitempty" json:"alt,omitempty"`
	Caption   string `yaml:"caption,omitempty" json:"caption,omitempty"`
	Width     string `yaml:"width,omitempty" json:"width,omitempty"`
	Height    string `yaml:"height,omitempty" json:"height,omitempty"`
	UseIframe bool   `yaml:"useIframe,omitempty" json:"useIframe,omitempty"`
	Autoplay  bool   `yaml:"autoplay,omitempty" json:"autoplay,omitempty"`
	Loop      bool   `yaml:"loop,omitempty" json:"loop,omitempty"`
	Muted     bool   `yaml:"muted,omitempty" json:"muted,omitempty"`

	// Lists
	Items   []string `yaml:"items,omitempty" json:"items,omitempty"`
	Ordered bool     `yaml:"ordered,omitempty" json:"ordered,omitempty"`

	line int
}

// CodeLine overrides the identity and links of one source line. Entries
// are matched to source lines by position.
type CodeLine struct {
	ID             string `yaml:"id,omitempty" json:"id,omitempty"`
	DisplayBlockID string `yaml:"displayBlockId,omitempty" json:"displayBlockId,omitempty"`
	DescriptionID  string `yaml:"descriptionId,omitempty" json:"descriptionId,omitempty"`
}

// Action is a declarative reaction of a display block to a browser event.
type Action struct {
	Event     string   `yaml:"event" json:"event"`
	Action    string   `yaml:"action" json:"action"`
	Targets   []string `yaml:"targets" json:"targets"`
	Animation string   `yaml:"animation,omitempty" json:"animation,omitempty"`
}

// KnownActions lists the supported Action.Action values.
var KnownActions = []string{"highlight", "unhighlight", "toggleHighlight", "show", "hide", "toggle"}

// IsCode reports whether the block is a code block.
func (b *Block) IsCode() bool { return b.Type == BlockCode }

// SourceLines splits the content of a code block into lines. A single
// trailing newline does not produce an empty last line.
func (b *Block) SourceLines() []string {
	if b.Content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(b.Content, "\n"), "\n")
}

// Line returns the configuration of line n (1-based) with its id filled in.
func (b *Block) Line(n int) CodeLine {
	var cl CodeLine
	if n >= 1 && n <= len(b.CodeLines) {
		cl = b.CodeLines[n-1]
	}
	if cl.ID == "" {
		cl.ID = DefaultLineID(b.ID, n)
	}
	return cl
}

// DefaultLineID is the id of line n of a code block without an explicit id.
func DefaultLineID(blockID string, n int) string {
	return fmt.Sprintf("%s_line_%d", blockID, n)
}
