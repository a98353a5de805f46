package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/OCAP2/killcam/pkg/core"
)

// Summary totals the kill-cams of a journal.
type Summary struct {
	KillCams        int            `json:"killcams"`
	Headshots       int            `json:"headshots"`
	Scoped          int            `json:"scoped"`
	ByVariant       map[string]int `json:"byVariant"`
	LongestDistance float64        `json:"longestDistance"`
	LongestTarget   string         `json:"longestTarget"`
	MeanDistance    float64        `json:"meanDistance"`
	Rejections      int            `json:"rejections"`
	ByReason        map[string]int `json:"byReason"`
}

func summarize(kills []core.KillRecord, rejections []core.Rejection) Summary {
	s := Summary{
		KillCams:   len(kills),
		ByVariant:  map[string]int{},
		Rejections: len(rejections),
		ByReason:   map[string]int{},
	}

	var total float64
	for _, k := range kills {
		s.ByVariant[string(k.Variant)]++
		if k.Headshot {
			s.Headshots++
		}
		if k.Scoped {
			s.Scoped++
		}
		total += k.Distance
		if k.Distance > s.LongestDistance {
			s.LongestDistance = k.Distance
			s.LongestTarget = k.TargetName
		}
	}
	if len(kills) > 0 {
		s.MeanDistance = total / float64(len(kills))
	}

	for _, r := range rejections {
		s.ByReason[r.Reason]++
	}
	return s
}

// nearKills keeps the kills whose target stood within radius of center.
func nearKills(kills []core.KillRecord, center core.Vec3, radius float64) []core.KillRecord {
	var out []core.KillRecord
	for _, k := range kills {
		if core.Distance(k.TargetPos, center) <= radius {
			out = append(out, k)
		}
	}
	return out
}

type printer struct {
	w    io.Writer
	json bool
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) table(header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func vec(v core.Vec3) string {
	return fmt.Sprintf("%.1f,%.1f,%.1f", v[0], v[1], v[2])
}

func (p printer) sessions(sessions []core.Session) error {
	if p.json {
		return p.encode(sessions)
	}
	return p.table("ID\tSCENE\tSTARTED\tENDED", func(tw *tabwriter.Writer) {
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Scene, stamp(s.StartedAt), stamp(s.EndedAt))
		}
	})
}

func (p printer) kills(kills []core.KillRecord) error {
	if p.json {
		return p.encode(kills)
	}
	return p.table("ID\tTIME\tSCENE\tVARIANT\tTARGET\tDISTANCE\tANGLE\tHEADSHOT\tSCOPED\tTARGET POS", func(tw *tabwriter.Writer) {
		for _, k := range kills {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1f\t%.1f\t%t\t%t\t%s\n",
				k.ID, stamp(k.Time), k.Scene, k.Variant, k.TargetName,
				k.Distance, k.Angle, k.Headshot, k.Scoped, vec(k.TargetPos))
		}
	})
}

func (p printer) rejections(rejections []core.Rejection) error {
	if p.json {
		return p.encode(rejections)
	}
	return p.table("ID\tTIME\tSCENE\tVARIANT\tTARGET\tREASON\tDISTANCE", func(tw *tabwriter.Writer) {
		for _, r := range rejections {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%.1f\n",
				r.ID, stamp(r.Time), r.Scene, r.Variant, r.TargetName, r.Reason, r.Distance)
		}
	})
}

func (p printer) summary(s Summary) error {
	if p.json {
		return p.encode(s)
	}
	return p.table("METRIC\tVALUE", func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "killcams\t%d\n", s.KillCams)
		fmt.Fprintf(tw, "headshots\t%d\n", s.Headshots)
		fmt.Fprintf(tw, "scoped\t%d\n", s.Scoped)
		fmt.Fprintf(tw, "mean distance\t%.1f\n", s.MeanDistance)
		fmt.Fprintf(tw, "longest\t%.1f %s\n", s.LongestDistance, s.LongestTarget)
		for _, v := range sortedKeys(s.ByVariant) {
			fmt.Fprintf(tw, "variant %s\t%d\n", v, s.ByVariant[v])
		}
		fmt.Fprintf(tw, "rejections\t%d\n", s.Rejections)
		for _, r := range sortedKeys(s.ByReason) {
			fmt.Fprintf(tw, "reason %s\t%d\n", r, s.ByReason[r])
		}
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
