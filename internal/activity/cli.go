package activity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/roxannelandry/calibrate-my-run/internal/tcx"
)

type Options struct {
	Output string
	Addr   string
}

type CLI struct {
	writer          io.Writer
	activityService *Service
	logger          *slog.Logger
	opts            Options
}

// NewCLI builds the command line. activityService may be nil, in which
// case calibrations are not recorded.
func NewCLI(w io.Writer, logger *slog.Logger, activityService *Service, opts Options) *CLI {
	return &CLI{
		writer:          w,
		activityService: activityService,
		logger:          logger,
		opts:            opts,
	}
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.Usage()
		return nil
	}

	switch args[0] {
	case "extend":
		if len(args) != 3 {
			c.Usage()
			return ErrUsage
		}
		extraKm, err := parsePositive(args[2], true)
		if err != nil {
			c.Usage()
			return err
		}
		return c.Extend(ctx, args[1], extraKm)
	case "export":
		if len(args) != 3 {
			c.Usage()
			return ErrUsage
		}
		return c.Export(args[1], args[2])
	case "history":
		return c.History(ctx)
	case "api":
		return c.RunAPI(ctx)
	case "help", "-h", "--help":
		c.Usage()
		return nil
	}

	if len(args) != 3 {
		c.Usage()
		return ErrUsage
	}
	distanceKm, err := parsePositive(args[1], false)
	if err != nil {
		c.Usage()
		return err
	}
	minutes, err := parsePositive(args[2], false)
	if err != nil {
		c.Usage()
		return err
	}
	if minutes*float64(time.Minute) >= maxDuration {
		c.Usage()
		return fmt.Errorf("%w: %q minutes is too long", ErrUsage, args[2])
	}
	return c.Calibrate(ctx, args[0], distanceKm, minutes)
}

func (c *CLI) Usage() {
	fmt.Fprintf(c.writer, `Usage: calibrate-my-run <input_file> <actual_distance_km> <actual_time_minutes>
--help show this message

	extend <input_file> <extra_distance_km>
	export <tcx_file> <gpx_file>
	history
	api
`)
}

// Calibrate rescales the track in input so it covers distanceKm in
// minutes, then writes the configured output file.
func (c *CLI) Calibrate(ctx context.Context, input string, distanceKm, minutes float64) error {
	doc, track, err := c.load(input)
	if err != nil {
		return err
	}

	byDistance, distanceFactor, err := RescaleDistance(track, distanceKm*1000)
	if err != nil {
		if errors.Is(err, ErrMissingData) {
			fmt.Fprintln(c.writer, "No distance data found in the last trackpoint.")
		} else {
			c.report(input, err)
		}
		return err
	}

	target := time.Duration(minutes * float64(time.Minute))
	rescaled, timeFactor, err := RescaleTime(byDistance, target)
	if err != nil {
		if errors.Is(err, ErrMissingData) {
			fmt.Fprintln(c.writer, "No time data found in the trackpoints.")
		} else {
			c.report(input, err)
		}
		return err
	}

	start := *rescaled.first().Time
	if err := doc.Apply(toSamples(rescaled), &tcx.Scale{Distance: distanceFactor, Time: timeFactor, Start: start}); err != nil {
		c.report(input, err)
		return err
	}

	if err := c.write(doc); err != nil {
		return err
	}

	c.logger.Debug("Rescaled track",
		slog.Int("trackpoints", len(rescaled)),
		slog.Float64("distance_factor", distanceFactor),
		slog.Float64("time_factor", timeFactor))

	if c.activityService == nil {
		return nil
	}

	out, err := doc.Bytes()
	if err != nil {
		return err
	}
	calibration := Calibration{
		Source:           filepath.Base(input),
		Sport:            doc.Sport(),
		Start:            start,
		RecordedDistance: track.Distance(),
		RecordedDuration: track.Duration().Seconds(),
		Distance:         rescaled.Distance(),
		Duration:         rescaled.Duration().Seconds(),
		DistanceFactor:   distanceFactor,
		TimeFactor:       timeFactor,
		AveragePace:      averagePace(rescaled),
		Splits:           CalculateSplits(rescaled),
		TCX:              out,
	}
	id, err := c.activityService.Add(ctx, calibration)
	if err != nil {
		// The file is already written; a history failure does not undo it.
		c.logger.Error("Error recording calibration", slog.Any("error", err))
		return nil
	}
	c.logger.Info("Recorded calibration", slog.Int64("id", id))

	return nil
}

// Extend adds extraKm to the recorded distance with a fixed increment per
// trackpoint instead of scaling it.
func (c *CLI) Extend(ctx context.Context, input string, extraKm float64) error {
	doc, track, err := c.load(input)
	if err != nil {
		return err
	}

	extended, err := ExtendDistance(track, extraKm*1000)
	if err != nil {
		if errors.Is(err, ErrMissingData) {
			fmt.Fprintln(c.writer, "No distance data found in the last trackpoint.")
		} else {
			c.report(input, err)
		}
		return err
	}

	if err := doc.Apply(toSamples(extended), nil); err != nil {
		c.report(input, err)
		return err
	}

	return c.write(doc)
}

func (c *CLI) Export(input, output string) error {
	doc, err := tcx.Parse(input)
	if err != nil {
		c.report(input, err)
		return err
	}

	if err := doc.WriteGPX(output); err != nil {
		if errors.Is(err, tcx.ErrNoPositions) {
			fmt.Fprintln(c.writer, "No trackpoints with a position found in the file.")
		} else {
			c.report(output, err)
		}
		return err
	}

	fmt.Fprintf(c.writer, "GPX file written to %s\n", output)
	return nil
}

func (c *CLI) History(ctx context.Context) error {
	if c.activityService == nil {
		return ErrHistoryDisabled
	}

	calibrations, err := c.activityService.Get(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tSTART\tDISTANCE\tTIME\tPACE")
	for _, cal := range calibrations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f km\t%s\t%s /km\n",
			cal.ID,
			cal.Source,
			cal.Start.Format("2006-01-02 15:04"),
			cal.Distance/1000,
			time.Duration(cal.Duration*float64(time.Second)).Round(time.Second),
			formatPace(cal.AveragePace))
	}
	return tw.Flush()
}

func (c *CLI) RunAPI(ctx context.Context) error {
	if c.activityService == nil {
		return ErrHistoryDisabled
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	mux := NewAPI(c.logger, c.activityService)

	server := &http.Server{
		Addr:    c.opts.Addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		c.logger.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Error("Error shutting down server", slog.Any("error", err))
		}
	}()

	c.logger.Info("Starting server", slog.String("addr", c.opts.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		c.logger.Error("Error starting server", slog.Any("error", err))
		cancel()
		return err
	}

	return nil
}

func (c *CLI) load(input string) (*tcx.Document, Track, error) {
	doc, err := tcx.Parse(input)
	if err != nil {
		c.report(input, err)
		return nil, nil, err
	}

	samples, err := doc.Samples()
	if err != nil {
		c.report(input, err)
		return nil, nil, err
	}

	track := make(Track, len(samples))
	for i, s := range samples {
		track[i] = Trackpoint(s)
	}
	return doc, track, nil
}

func (c *CLI) write(doc *tcx.Document) error {
	if err := doc.Write(c.opts.Output); err != nil {
		c.report(c.opts.Output, err)
		return err
	}
	fmt.Fprintf(c.writer, "Updated file written to %s\n", c.opts.Output)
	return nil
}

func (c *CLI) report(path string, err error) {
	switch {
	case errors.Is(err, tcx.ErrFileNotFound):
		fmt.Fprintf(c.writer, "The file '%s' was not found.\n", path)
	case errors.Is(err, tcx.ErrParse):
		fmt.Fprintln(c.writer, "There was an error parsing the XML file.")
	case errors.Is(err, tcx.ErrNoTrackpoints):
		fmt.Fprintln(c.writer, "No trackpoints found in the file.")
	case errors.Is(err, tcx.ErrWrite):
		fmt.Fprintf(c.writer, "An error occurred while writing to %s\n", path)
	default:
		fmt.Fprintf(c.writer, "Could not update %s: %v\n", path, err)
	}
}

func toSamples(track Track) []tcx.Sample {
	samples := make([]tcx.Sample, len(track))
	for i, tp := range track {
		samples[i] = tcx.Sample(tp)
	}
	return samples
}

// maxDuration bounds the nanoseconds a time.Duration can hold.
const maxDuration = float64(math.MaxInt64)

func parsePositive(s string, allowZero bool) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrUsage, s)
	}
	if v < 0 || (v == 0 && !allowZero) {
		return 0, fmt.Errorf("%w: %q must be positive", ErrUsage, s)
	}
	return v, nil
}

// averagePace is in minutes per kilometer.
func averagePace(track Track) float64 {
	km := track.Distance() / 1000
	if km == 0 {
		return 0
	}
	return track.Duration().Minutes() / km
}

func formatPace(minPerKm float64) string {
	d := time.Duration(minPerKm * float64(time.Minute)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
