// Package codelesson provides the lesson model for step-by-step interactive
// code lessons: a display pane of rendered blocks next to a code pane whose
// lines link back to those blocks and to descriptions.
package codelesson

import (
	"errors"
	"fmt"
)

// ErrLessonNotFound is returned when a lesson id is not known.
var ErrLessonNotFound = errors.New("lesson not found")

// ErrStepOutOfRange is returned for a position outside the lesson.
var ErrStepOutOfRange = errors.New("step out of range")

// Lesson is a parsed lesson file.
type Lesson struct {
	ID       string    `yaml:"exampleId" json:"exampleId"`
	Metadata Metadata  `yaml:"metadata" json:"metadata"`
	BigSteps []BigStep `yaml:"bigSteps" json:"bigSteps"`

	SourceFile string `yaml:"-" json:"-"` // path the lesson was read from (for error messages)
}

// Metadata describes a lesson in listings.
type Metadata struct {
	Title         string   `yaml:"title" json:"title"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Difficulty    string   `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`
	EstimatedTime string   `yaml:"estimatedTime,omitempty" json:"estimatedTime,omitempty"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Author        string   `yaml:"author,omitempty" json:"author,omitempty"`
	Version       string   `yaml:"version,omitempty" json:"version,omitempty"`
	Published     *bool    `yaml:"published,omitempty" json:"published,omitempty"` // nil = published
	CreatedAt     string   `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt     string   `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// BigStep groups small steps under a chapter title.
type BigStep struct {
	ID          string      `yaml:"bigStepId" json:"bigStepId"`
	Title       string      `yaml:"title" json:"title"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	SmallSteps  []SmallStep `yaml:"smallSteps" json:"smallSteps"`
}

// SmallStep is one screen of a lesson.
type SmallStep struct {
	ID          string     `yaml:"smallStepId" json:"smallStepId"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Blocks      StepBlocks `yaml:"blocks" json:"blocks"`

	line int
}

// StepBlocks holds the blocks of both panes. LeftArea is the display pane,
// RightArea the code pane.
type StepBlocks struct {
	LeftArea  []Block `yaml:"leftArea" json:"leftArea"`
	RightArea []Block `yaml:"rightArea" json:"rightArea"`
}

// Position addresses a small step.
type Position struct {
	BigIndex   int `json:"bigIndex"`
	SmallIndex int `json:"smallIndex"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d.%d", p.BigIndex+1, p.SmallIndex+1)
}

// IsPublished reports whether the lesson shows up in listings.
func (l *Lesson) IsPublished() bool {
	return l.Metadata.Published == nil || *l.Metadata.Published
}

// Title returns the lesson title, falling back to its id.
func (l *Lesson) Title() string {
	if l.Metadata.Title != "" {
		return l.Metadata.Title
	}
	return l.ID
}

// Step returns the big and small step at pos.
func (l *Lesson) Step(pos Position) (*BigStep, *SmallStep, error) {
	if pos.BigIndex < 0 || pos.BigIndex >= len(l.BigSteps) {
		return nil, nil, fmt.Errorf("%w: %s", ErrStepOutOfRange, pos)
	}
	big := &l.BigSteps[pos.BigIndex]
	if pos.SmallIndex < 0 || pos.SmallIndex >= len(big.SmallSteps) {
		return nil, nil, fmt.Errorf("%w: %s", ErrStepOutOfRange, pos)
	}
	return big, &big.SmallSteps[pos.SmallIndex], nil
}

// StepCount returns the number of small steps across all big steps.
func (l *Lesson) StepCount() int {
	n := 0
	for _, big := range l.BigSteps {
		n += len(big.SmallSteps)
	}
	return n
}

// Positions lists every small step in reading order.
func (l *Lesson) Positions() []Position {
	out := make([]Position, 0, l.StepCount())
	for bi, big := range l.BigSteps {
		for si := range big.SmallSteps {
			out = append(out, Position{BigIndex: bi, SmallIndex: si})
		}
	}
	return out
}

// Summary is the listing view of a lesson.
type Summary struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	EstimatedTime string   `json:"estimatedTime,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Author        string   `json:"author,omitempty"`
	Steps         int      `json:"steps"`
}

// Summary returns the listing view of the lesson.
func (l *Lesson) Summary() Summary {
	return Summary{
		ID:            l.ID,
		Title:         l.Title(),
		Description:   l.Metadata.Description,
		Difficulty:    l.Metadata.Difficulty,
		EstimatedTime: l.Metadata.EstimatedTime,
		Tags:          l.Metadata.Tags,
		Author:        l.Metadata.Author,
		Steps:         l.StepCount(),
	}
}
