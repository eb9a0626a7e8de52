package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

var (
	Bold   = color.New(color.Bold)
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Cyan   = color.New(color.FgCyan)
)

// Render writes a throughput table and a latency table for summaries,
// fastest run first.
func Render(w io.Writer, summaries []Summary) error {
	if len(summaries) == 0 {
		_, _ = Yellow.Fprintln(w, "no results")
		return nil
	}

	ranked := slices.Clone(summaries)
	slices.SortStableFunc(ranked, func(a, b Summary) int {
		switch {
		case a.Throughput > b.Throughput:
			return -1
		case a.Throughput < b.Throughput:
			return 1
		default:
			return 0
		}
	})
	best := ranked[0].Throughput

	sectionHeader(w, "THROUGHPUT", "Successful requests per second (higher is better)")
	tp := tablewriter.NewWriter(w)
	tp.Header("Rank", "Run", "Requests", "Errors", "Elapsed", "Req/sec", "Transferred", "vs Best")
	for i, s := range ranked {
		_ = tp.Append(
			strconv.Itoa(i+1),
			s.Label,
			FormatNumber(s.Requests),
			FormatNumber(s.Errors),
			s.Elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%.1f", s.Throughput),
			FormatBytes(s.Bytes),
			vsBest(s.Throughput, best, i),
		)
	}
	if err := tp.Render(); err != nil {
		return fmt.Errorf("render throughput table: %w", err)
	}

	sectionHeader(w, "LATENCY", "Time from sending a request to its last byte (lower is better)")
	lt := tablewriter.NewWriter(w)
	lt.Header("Run", "Min", "Mean", "P50", "P95", "P99", "Max")
	for _, s := range ranked {
		_ = lt.Append(
			s.Label,
			FormatLatency(s.Min),
			FormatLatency(s.Mean),
			FormatLatency(s.P50),
			FormatLatency(s.P95),
			FormatLatency(s.P99),
			FormatLatency(s.Max),
		)
	}
	if err := lt.Render(); err != nil {
		return fmt.Errorf("render latency table: %w", err)
	}

	for _, s := range ranked {
		if s.Errors > 0 {
			_, _ = Red.Fprintf(w, "  %s: %d failed requests, status counts %v\n", s.Label, s.Errors, s.ByStatus)
		}
	}
	return nil
}

func vsBest(throughput, best float64, rank int) string {
	if rank == 0 {
		return "baseline"
	}
	if throughput == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx slower", best/throughput)
}

func sectionHeader(w io.Writer, title string, descriptions ...string) {
	_, _ = fmt.Fprintln(w)
	_, _ = Bold.Fprintln(w, title)
	for _, d := range descriptions {
		_, _ = Cyan.Fprintln(w, "  "+d)
	}
	_, _ = fmt.Fprintln(w)
}

// NewProgressBar returns a bar counting total requests on w.
func NewProgressBar(total int, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("req"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionClearOnFinish(),
	)
}
