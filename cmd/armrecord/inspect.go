package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armrecord/pkg/trajectory"
)

type InspectCommand struct {
	Records int `short:"n" long:"records" description:"Print the first N records"`

	Args struct {
		Shards []string `positional-arg-name:"shard" required:"1"`
	} `positional-args:"yes"`
}

// shardSummary is what inspect reports for one shard.
type shardSummary struct {
	Header  trajectory.Header
	Records int
	Kinds   map[trajectory.StepType]int
	Reward  float64
	Closed  bool
}

func summarize(hdr trajectory.Header, steps []trajectory.Step) shardSummary {
	s := shardSummary{Header: hdr, Records: len(steps), Kinds: make(map[trajectory.StepType]int)}
	for _, st := range steps {
		s.Kinds[st.StepType]++
		s.Reward += float64(st.Reward)
	}
	s.Closed = len(steps) > 0 && steps[len(steps)-1].StepType == trajectory.Last
	return s
}

func (c *InspectCommand) Execute(args []string) error {
	for i, path := range c.Args.Shards {
		if i > 0 {
			fmt.Println()
		}
		hdr, steps, err := trajectory.ReadShard(path)
		if err != nil {
			return err
		}
		s := summarize(hdr, steps)

		fmt.Println(headerStyle.Render(path))
		fmt.Printf("  session  %s\n", hdr.Session)
		fmt.Printf("  created  %s\n", hdr.Created.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  records  %d (first %d, mid %d, last %d)\n",
			s.Records, s.Kinds[trajectory.First], s.Kinds[trajectory.Mid], s.Kinds[trajectory.Last])
		fmt.Printf("  reward   %.4f\n", s.Reward)
		if s.Closed {
			fmt.Println("  episode  " + successStyle.Render("closed"))
		} else {
			fmt.Println("  episode  " + warnStyle.Render("not closed"))
		}
		fmt.Println(specTable(hdr.Spec, hdr.CompressImages))

		for _, st := range steps[:min(c.Records, len(steps))] {
			fmt.Println(dimStyle.Render(formatStep(st)))
		}
	}
	return nil
}

func specTable(spec trajectory.Spec, compressed bool) string {
	var rows [][]string
	for _, o := range spec.Observation {
		codec := ""
		if o.DType == trajectory.Uint8 && len(o.Shape) == 3 && compressed {
			codec = "zstd"
		}
		rows = append(rows, []string{"observation", o.Name, string(o.DType), fmt.Sprint(o.Shape), codec})
	}
	rows = append(rows, []string{"action", spec.Action.Name, string(spec.Action.DType), fmt.Sprint(spec.Action.Shape), ""})

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Field", "Name", "DType", "Shape", "Codec").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}

func formatStep(st trajectory.Step) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%4d -> %-4d %-5s -> %-5s action=%v reward=%.4f",
		st.Index, st.NextIndex, st.StepType, st.NextStepType, st.Action.Float, st.Reward)
	for _, name := range []string{"position", "target", "angles"} {
		if t, ok := st.Observation[name]; ok {
			fmt.Fprintf(&sb, " %s=%v", name, t.Float)
		}
	}
	return sb.String()
}
