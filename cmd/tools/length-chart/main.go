// Command length-chart renders recent actuator length transmissions from a
// bridge database as an HTML line chart, one series per actuator. Useful for
// eyeballing platform motion after a session without replaying it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	_ "modernc.org/sqlite"

	"github.com/canflyzhou/Stewart-Platform/internal/db"
	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
)

var (
	dbFile = flag.String("db", "bridge.db", "Bridge database file")
	limit  = flag.Int("limit", 2000, "Maximum number of transmissions to chart")
	out    = flag.String("out", "lengths.html", "Output HTML file")
)

// buildSeries turns transmissions (newest first, as RecentTransmissions
// returns them) into a time-ordered x axis of transmission IDs and one line
// series per actuator.
func buildSeries(transmissions []db.Transmission) ([]string, [kinematics.NumActuators][]opts.LineData) {
	xAxis := make([]string, len(transmissions))
	var series [kinematics.NumActuators][]opts.LineData
	for i := range series {
		series[i] = make([]opts.LineData, len(transmissions))
	}
	last := len(transmissions) - 1
	for n, tx := range transmissions {
		xAxis[last-n] = strconv.FormatInt(tx.ID, 10)
		for i, l := range tx.Lengths {
			series[i][last-n] = opts.LineData{Value: l}
		}
	}
	return xAxis, series
}

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	transmissions, err := database.RecentTransmissions(*limit)
	if err != nil {
		log.Fatalf("failed to read transmissions: %v", err)
	}
	if len(transmissions) == 0 {
		log.Fatal("no transmissions in database")
	}

	xAxis, series := buildSeries(transmissions)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Actuator Lengths",
			Theme:     "dark",
			Width:     "1400px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Actuator Lengths",
			Subtitle: fmt.Sprintf("db=%s transmissions=%d", *dbFile, len(transmissions)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "transmission"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "length (mm)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(xAxis)
	for i := 0; i < kinematics.NumActuators; i++ {
		line.AddSeries(fmt.Sprintf("actuator %d", i), series[i])
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	log.Printf("wrote %s", *out)
}
