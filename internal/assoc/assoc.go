// Package assoc stores the links between code lines, display blocks and
// descriptions for a single lesson step.
package assoc

// BlockID identifies a display block within a lesson step.
type BlockID string

// LineID identifies a code line within a lesson step.
type LineID string

// DescriptionID identifies a description within a lesson step.
type DescriptionID string

// LineAssociation is what a code line points at. Either field may be empty.
type LineAssociation struct {
	DisplayTargetID BlockID       `json:"displayTargetId,omitempty"`
	DescriptionID   DescriptionID `json:"descriptionId,omitempty"`
}

// HasTarget reports whether the line points at a display block.
func (a LineAssociation) HasTarget() bool { return a.DisplayTargetID != "" }

// HasDescription reports whether the line points at a description.
func (a LineAssociation) HasDescription() bool { return a.DescriptionID != "" }

// Model is a pair of lookup tables. It has no behavior beyond storage and
// never fails: unknown identities resolve to empty results.
//
// Model is not safe for concurrent use; the engine guards it.
type Model struct {
	blocks map[BlockID][]LineID
	lines  map[LineID]LineAssociation
}

// New returns an empty model.
func New() *Model {
	return &Model{
		blocks: make(map[BlockID][]LineID),
		lines:  make(map[LineID]LineAssociation),
	}
}

// SetBlockAssociations replaces the ordered line list of a block.
func (m *Model) SetBlockAssociations(id BlockID, lines []LineID) {
	m.blocks[id] = append([]LineID(nil), lines...)
}

// SetLineAssociation replaces the association record of a line.
func (m *Model) SetLineAssociation(id LineID, a LineAssociation) {
	m.lines[id] = a
}

// AssociatedLines returns a copy of the lines declared by a block, in
// declaration order. Unknown blocks return nil.
func (m *Model) AssociatedLines(id BlockID) []LineID {
	lines, ok := m.blocks[id]
	if !ok || len(lines) == 0 {
		return nil
	}
	return append([]LineID(nil), lines...)
}

// LineAssociation returns the record of a line and whether it exists.
func (m *Model) LineAssociation(id LineID) (LineAssociation, bool) {
	a, ok := m.lines[id]
	return a, ok
}

// HasBlock reports whether block associations were set for id.
func (m *Model) HasBlock(id BlockID) bool {
	_, ok := m.blocks[id]
	return ok
}

// Blocks returns the number of blocks with associations.
func (m *Model) Blocks() int { return len(m.blocks) }

// Lines returns the number of lines with associations.
func (m *Model) Lines() int { return len(m.lines) }

// Clear drops every record.
func (m *Model) Clear() {
	clear(m.blocks)
	clear(m.lines)
}
