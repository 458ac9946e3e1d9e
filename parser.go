package codelesson

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

// ConfigFileNames are skipped when loading a lesson directory.
var ConfigFileNames = []string{"codelesson.yaml", "codelesson.yml"}

// IsLessonFile reports whether name has a lesson file extension.
func IsLessonFile(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	if slices.Contains(ConfigFileNames, base) {
		return false
	}
	switch strings.ToLower(path.Ext(base)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ParseFile reads and parses a lesson file.
func ParseFile(filename string) (*Lesson, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read lesson file: %w", err)
	}
	return Parse(filename, data)
}

// Parse parses lesson content. JSON and YAML are both accepted; JSON goes
// through the same decoder so errors carry line numbers either way.
func Parse(filename string, data []byte) (*Lesson, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, NewParseError(filename, 0, "lesson file is empty").
			WithHint("A lesson needs at least exampleId, metadata and bigSteps")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		line, col := lineFromYAMLError(err.Error())
		return nil, NewParseError(filename, line, fmt.Sprintf("invalid lesson syntax: %v", err)).
			WithColumn(col).
			WithHint("Lesson files are JSON or YAML; check brackets, commas and quotes near this line").
			WithSource(data)
	}

	var lesson Lesson
	if err := doc.Decode(&lesson); err != nil {
		line, _ := lineFromYAMLError(err.Error())
		return nil, NewParseError(filename, line, fmt.Sprintf("invalid lesson structure: %v", err)).
			WithHint("Check the field types against an existing lesson").
			WithSource(data)
	}
	if lesson.BigSteps == nil {
		return nil, NewParseError(filename, 1, "missing bigSteps").
			WithHint("Add a bigSteps list with at least one step").
			WithSource(data)
	}

	lesson.SourceFile = filename
	if lesson.ID == "" {
		base := filepath.Base(filename)
		lesson.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	applyDefaults(&lesson)
	return &lesson, nil
}

// applyDefaults fills in block ids that authors left out.
func applyDefaults(l *Lesson) {
	for bi := range l.BigSteps {
		big := &l.BigSteps[bi]
		if big.ID == "" {
			big.ID = fmt.Sprintf("big_%d", bi+1)
		}
		for si := range big.SmallSteps {
			small := &big.SmallSteps[si]
			if small.ID == "" {
				small.ID = fmt.Sprintf("%s_small_%d", big.ID, si+1)
			}
			for i := range small.Blocks.LeftArea {
				if small.Blocks.LeftArea[i].ID == "" {
					small.Blocks.LeftArea[i].ID = fmt.Sprintf("block_%d_%d_left_%d", bi+1, si+1, i+1)
				}
			}
			for i := range small.Blocks.RightArea {
				if small.Blocks.RightArea[i].ID == "" {
					small.Blocks.RightArea[i].ID = fmt.Sprintf("block_%d_%d_right_%d", bi+1, si+1, i+1)
				}
			}
		}
	}
}

// UnmarshalYAML records where the block was declared.
func (b *Block) UnmarshalYAML(value *yaml.Node) error {
	type plain Block
	if err := value.Decode((*plain)(b)); err != nil {
		return err
	}
	b.line = value.Line
	return nil
}

// UnmarshalYAML records where the step was declared.
func (s *SmallStep) UnmarshalYAML(value *yaml.Node) error {
	type plain SmallStep
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line = value.Line
	return nil
}

// SourceLine returns the line the block was declared on, or 0.
func (b *Block) SourceLine() int { return b.line }

// SourceLine returns the line the step was declared on, or 0.
func (s *SmallStep) SourceLine() int { return s.line }

// LoadDir parses every lesson below the root of fsys. Directories starting
// with a dot are skipped, as are JSON/YAML files without a bigSteps key and
// paths for which skip (when non-nil) returns true. Lessons are sorted by
// id; problems are returned per file.
func LoadDir(fsys fs.FS, skip func(path string) bool) ([]*Lesson, []error) {
	var lessons []*Lesson
	var errs []error
	seen := make(map[string]string)

	walkErr := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !IsLessonFile(p) || (skip != nil && skip(p)) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}
		if !LooksLikeLesson(data) {
			return nil
		}
		lesson, err := Parse(p, data)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if prev, dup := seen[lesson.ID]; dup {
			errs = append(errs, NewParseError(p, 1, fmt.Sprintf("duplicate lesson id %q", lesson.ID)).
				WithRelated(fmt.Sprintf("first declared in %s", prev)).
				WithSource(data))
			return nil
		}
		seen[lesson.ID] = p
		lessons = append(lessons, lesson)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	slices.SortFunc(lessons, func(a, b *Lesson) int { return strings.Compare(a.ID, b.ID) })
	return lessons, errs
}

// LooksLikeLesson is true for content with a top-level bigSteps key and
// for content that does not parse (so the error gets reported).
func LooksLikeLesson(data []byte) bool {
	var probe struct {
		BigSteps *yaml.Node `yaml:"bigSteps"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return true
	}
	return probe.BigSteps != nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// RenderMarkdown converts lesson markdown to HTML. Inline HTML written by
// the lesson author is kept.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
