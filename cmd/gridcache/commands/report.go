package commands

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/gridcache/internal/cli/output"
	"github.com/marmos91/gridcache/pkg/grid"
	"github.com/marmos91/gridcache/pkg/imagecache"
)

// tierReport is one cache tier in the simulate report.
type tierReport struct {
	Tier      string `json:"tier" yaml:"tier"`
	Cached    int    `json:"cached" yaml:"cached"`
	InFlight  int    `json:"in_flight" yaml:"in_flight"`
	Requests  uint64 `json:"requests" yaml:"requests"`
	Hits      uint64 `json:"hits" yaml:"hits"`
	Joined    uint64 `json:"joined" yaml:"joined"`
	Empty     uint64 `json:"empty" yaml:"empty"`
	Cancelled uint64 `json:"cancelled" yaml:"cancelled"`
	Evicted   uint64 `json:"evicted" yaml:"evicted"`
}

// simulationReport summarises a simulate run.
type simulationReport struct {
	Library   string        `json:"library" yaml:"library"`
	Session   string        `json:"session" yaml:"session"`
	Assets    int           `json:"assets" yaml:"assets"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Steps     int           `json:"steps" yaml:"steps"`
	Appeared  int           `json:"cells_shown" yaml:"cells_shown"`
	Removed   int           `json:"cells_removed" yaml:"cells_removed"`
	Delivered int64         `json:"images_delivered" yaml:"images_delivered"`

	Pipeline struct {
		State     string `json:"state" yaml:"state"`
		Ranges    uint64 `json:"ranges" yaml:"ranges"`
		Chunks    uint64 `json:"chunks" yaml:"chunks"`
		Issued    uint64 `json:"issued" yaml:"issued"`
		Skipped   uint64 `json:"skipped" yaml:"skipped"`
		OutOfList uint64 `json:"out_of_list" yaml:"out_of_list"`
	} `json:"pipeline" yaml:"pipeline"`

	Tiers []tierReport `json:"tiers" yaml:"tiers"`
}

func newSimulationReport(library string, stats grid.Stats, res scrollResult, delivered int64, elapsed time.Duration) *simulationReport {
	r := &simulationReport{
		Library:   library,
		Session:   stats.SessionID,
		Assets:    stats.Assets,
		Elapsed:   elapsed,
		Steps:     res.Steps,
		Appeared:  res.Appeared,
		Removed:   res.Disappeared,
		Delivered: delivered,
	}
	r.Pipeline.State = stats.Pipeline.State.String()
	r.Pipeline.Ranges = stats.Pipeline.Ranges
	r.Pipeline.Chunks = stats.Pipeline.Chunks
	r.Pipeline.Issued = stats.Pipeline.Issued
	r.Pipeline.Skipped = stats.Pipeline.Skipped
	r.Pipeline.OutOfList = stats.Pipeline.OutOfList

	for _, t := range imagecache.Tiers {
		ts := stats.Cache.Tier(t)
		r.Tiers = append(r.Tiers, tierReport{
			Tier:      t.String(),
			Cached:    ts.Cached,
			InFlight:  ts.InFlight,
			Requests:  ts.Requests,
			Hits:      ts.Hits,
			Joined:    ts.Joined,
			Empty:     ts.Empty,
			Cancelled: ts.Cancelled,
			Evicted:   ts.Evicted,
		})
	}
	return r
}

// Headers implements output.TableRenderer.
func (r *simulationReport) Headers() []string {
	return []string{"Tier", "Cached", "In flight", "Requests", "Hits", "Joined", "Empty", "Cancelled", "Evicted"}
}

// Rows implements output.TableRenderer.
func (r *simulationReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Tiers))
	for _, t := range r.Tiers {
		rows = append(rows, []string{
			t.Tier,
			humanize.Comma(int64(t.Cached)),
			humanize.Comma(int64(t.InFlight)),
			humanize.Comma(int64(t.Requests)),
			humanize.Comma(int64(t.Hits)),
			humanize.Comma(int64(t.Joined)),
			humanize.Comma(int64(t.Empty)),
			humanize.Comma(int64(t.Cancelled)),
			humanize.Comma(int64(t.Evicted)),
		})
	}
	return rows
}

// summary is the key/value block printed above the tier table.
func (r *simulationReport) summary() [][2]string {
	return [][2]string{
		{"Library", r.Library},
		{"Session", r.Session},
		{"Assets", humanize.Comma(int64(r.Assets))},
		{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"Scroll steps", humanize.Comma(int64(r.Steps))},
		{"Cells shown", humanize.Comma(int64(r.Appeared))},
		{"Cells removed", humanize.Comma(int64(r.Removed))},
		{"Images delivered", humanize.Comma(r.Delivered)},
		{"Pipeline", r.Pipeline.State},
		{"Ranges", humanize.Comma(int64(r.Pipeline.Ranges))},
		{"Chunks", humanize.Comma(int64(r.Pipeline.Chunks))},
		{"Thumbnails issued", humanize.Comma(int64(r.Pipeline.Issued))},
		{"Already cached", humanize.Comma(int64(r.Pipeline.Skipped))},
	}
}

// print writes the report in format f.
func (r *simulationReport) print(w io.Writer, f output.Format) error {
	if f != output.FormatTable {
		return output.Print(w, f, r)
	}
	if err := output.KeyValues(w, r.summary()); err != nil {
		return err
	}
	_, _ = io.WriteString(w, "\n")
	return output.PrintTable(w, r)
}
