package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/livetemplate/codelesson"
)

type BlocksCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewBlocksCmd creates a new blocks command
func NewBlocksCmd(flags *Flags) *BlocksCmd {
	return &BlocksCmd{flags: flags}
}

// Register adds the blocks command to the application
func (cmd *BlocksCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "blocks",
		Usage:     "Show the blocks and line links of a lesson",
		UsageText: "codelesson blocks [--json] <file>",
		Description: `Prints every step of a lesson with its blocks, and for code blocks the
block and description each line points at. Useful when wiring lines to
blocks by hand.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output one JSON object per line",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

// blockRow is one line of output.
type blockRow struct {
	Step        string `json:"step"`
	Area        string `json:"area"`
	Block       string `json:"block"`
	Type        string `json:"type"`
	Line        int    `json:"line,omitempty"`
	LineID      string `json:"lineId,omitempty"`
	Target      string `json:"target,omitempty"`
	Description string `json:"description,omitempty"`
	Flags       string `json:"flags,omitempty"`
}

func (cmd *BlocksCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one lesson file")
	}
	lesson, err := codelesson.ParseFile(c.Args().First())
	if err != nil {
		return err
	}

	rows := lessonRows(lesson)

	if cmd.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	fmt.Printf("%s (%s)\n\n", lesson.Title(), lesson.ID)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tAREA\tBLOCK\tTYPE\tLINE\tPOINTS AT\tDESCRIPTION\tFLAGS")
	for _, r := range rows {
		line := ""
		if r.Line > 0 {
			line = fmt.Sprintf("%d %s", r.Line, r.LineID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Step, r.Area, r.Block, r.Type, line, r.Target, r.Description, r.Flags)
	}
	return w.Flush()
}

func lessonRows(lesson *codelesson.Lesson) []blockRow {
	var rows []blockRow
	for _, pos := range lesson.Positions() {
		_, small, err := lesson.Step(pos)
		if err != nil {
			continue
		}
		step := pos.String()
		for _, b := range small.Blocks.LeftArea {
			rows = append(rows, blockRow{
				Step:  step,
				Area:  "left",
				Block: b.ID,
				Type:  string(b.Type),
				Flags: blockFlags(&b),
			})
		}
		for _, b := range small.Blocks.RightArea {
			if !b.IsCode() {
				rows = append(rows, blockRow{Step: step, Area: "right", Block: b.ID, Type: string(b.Type)})
				continue
			}
			for n := range b.SourceLines() {
				cl := b.Line(n + 1)
				rows = append(rows, blockRow{
					Step:        step,
					Area:        "right",
					Block:       b.ID,
					Type:        string(b.Type),
					Line:        n + 1,
					LineID:      cl.ID,
					Target:      cl.DisplayBlockID,
					Description: cl.DescriptionID,
				})
			}
		}
	}
	return rows
}

func blockFlags(b *codelesson.Block) string {
	var flags []string
	if b.Hidden {
		flags = append(flags, "hidden")
	}
	if b.Draggable {
		flags = append(flags, "draggable")
	}
	if len(b.Actions) > 0 {
		flags = append(flags, fmt.Sprintf("actions=%d", len(b.Actions)))
	}
	if len(b.Associations) > 0 {
		flags = append(flags, "lines="+strings.Join(b.Associations, ","))
	}
	return strings.Join(flags, " ")
}
