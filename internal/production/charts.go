package production

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/comalice/circuitx/internal/primitives"
)

// Series is the reading history of one instrument, as charted.
type Series struct {
	Name     string
	Unit     string
	Readings []primitives.Reading
}

// ErrNoSeries is returned when there is nothing to chart.
var ErrNoSeries = errors.New("no series to chart")

// RenderCharts writes an HTML page with one line chart per series, plotted
// against simulated time.
func RenderCharts(w io.Writer, series ...Series) error {
	if len(series) == 0 {
		return ErrNoSeries
	}
	page := components.NewPage()
	for _, s := range series {
		page.AddCharts(lineChart(s))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

func lineChart(s Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    s.Name,
			Subtitle: fmt.Sprintf("%d readings, %s", len(s.Readings), s.Unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:        "t (ms)",
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  s.Unit,
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)

	x := make([]int64, len(s.Readings))
	data := make([]opts.LineData, len(s.Readings))
	for i, r := range s.Readings {
		x[i] = int64(r.TimeStep)
		data[i] = opts.LineData{Value: chartValue(r.Value)}
	}
	line.SetXAxis(x).AddSeries(s.Name, data)
	return line
}

// chartValue maps values JSON cannot carry to echarts' missing-point marker.
func chartValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return v
}
