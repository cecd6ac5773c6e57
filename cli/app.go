// Package cli contains the autocount command line: listing cameras and running a capture and
// count against a detection proxy.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"

	"github.com/invscan/autocount/capture"
	"github.com/invscan/autocount/components/camera"
	"github.com/invscan/autocount/components/camera/fake"
	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/rimage"
	"github.com/invscan/autocount/roi"
	"github.com/invscan/autocount/utils"
)

// Flags.
const (
	flagDebug         = "debug"
	flagImage         = "image"
	flagProxy         = "proxy"
	flagDevice        = "device"
	flagROI           = "roi"
	flagNotes         = "notes"
	flagMaxUploadEdge = "max-upload-edge"
	flagOutput        = "output"
)

// NewApp returns the autocount command line application.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "autocount",
		Usage: "capture a photo, select a region and count the items in it",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringSliceFlag{
				Name:  flagImage,
				Usage: "use image `FILE`s as fake cameras instead of real devices",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "devices",
				Usage:  "list available cameras",
				Action: DevicesAction,
			},
			{
				Name:  "count",
				Usage: "capture a frame and count the items inside the region of interest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagProxy,
						Usage:    "detection proxy `URL`",
						EnvVars:  []string{"AUTOCOUNT_PROXY_URL"},
						Required: true,
					},
					&cli.StringFlag{
						Name:  flagDevice,
						Usage: "camera device `ID` (default: rear camera)",
					},
					&cli.StringFlag{
						Name:  flagROI,
						Usage: "region of interest as normalized `x,y,width,height`",
					},
					&cli.StringFlag{
						Name:  flagNotes,
						Usage: "notes attached to every counted item",
					},
					&cli.IntFlag{
						Name:  flagMaxUploadEdge,
						Usage: "downscale the crop so no side exceeds this many pixels (0 disables)",
					},
					&cli.StringFlag{
						Name:  flagOutput,
						Usage: "write the annotated frame as PNG to `FILE`",
					},
				},
				Action: CountAction,
			},
		},
	}
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("autocount")
	}
	logger := logging.NewLogger("autocount")
	logger.SetLevel(logging.WARN)
	return logger
}

func newSource(c *cli.Context, logger logging.Logger) (camera.Source, error) {
	if paths := c.StringSlice(flagImage); len(paths) > 0 {
		return fake.NewFileSource(c.Context, paths...)
	}
	return camera.NewMediaSource(logger), nil
}

// DevicesAction prints the available cameras.
func DevicesAction(c *cli.Context) error {
	logger := newLogger(c)
	src, err := newSource(c, logger)
	if err != nil {
		return err
	}
	devices, err := src.EnumerateDevices(c.Context)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "ID", "Label"})
	for i, d := range devices {
		t.AppendRow(table.Row{i + 1, d.ID, d.Label})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// ParseROI parses "x,y,width,height" in normalized units.
func ParseROI(s string) (roi.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return roi.Rect{}, errors.Errorf("region %q must have four comma separated values", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := cast.ToFloat64E(strings.TrimSpace(p))
		if err != nil {
			return roi.Rect{}, errors.Wrapf(err, "invalid region value %q", p)
		}
		vals[i] = v
	}
	r := roi.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if !r.Valid() {
		return roi.Rect{}, errors.Errorf("region %v is outside the frame or smaller than %v", r, roi.MinSize)
	}
	return r, nil
}

// CountAction captures one frame, counts the items in the region of interest and prints them.
func CountAction(c *cli.Context) error {
	ctx := c.Context
	logger := newLogger(c)

	var rect *roi.Rect
	if s := c.String(flagROI); s != "" {
		parsed, err := ParseROI(s)
		if err != nil {
			return err
		}
		rect = &parsed
	}

	src, err := newSource(c, logger)
	if err != nil {
		return err
	}
	editor := capture.NewEditor(
		camera.NewSession(src, logger.Sublogger("camera")),
		capture.NewProxyClient(c.String(flagProxy), nil, logger.Sublogger("proxy")),
		logger,
		capture.WithMaxUploadEdge(c.Int(flagMaxUploadEdge)),
	)
	defer func() {
		if err := editor.Close(); err != nil {
			logger.Warnw("error closing camera", "error", err)
		}
	}()

	if device := c.String(flagDevice); device != "" {
		err = editor.SwitchDevice(ctx, device)
	} else {
		err = editor.Start(ctx)
	}
	if err != nil {
		return errors.New(editor.State().Error)
	}

	captured, err := editor.Capture(ctx)
	if err != nil {
		return err
	}
	if !captured {
		return errors.New("camera was not ready to capture")
	}
	if rect != nil {
		editor.SetRect(*rect)
	}
	editor.SetNotes(c.String(flagNotes))
	if err := editor.Done(ctx); err != nil {
		return errors.New(editor.State().Error)
	}

	state := editor.State()
	printResult(c, state)

	if out := c.String(flagOutput); out != "" {
		if err := writeRender(ctx, editor, out); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "annotated frame written to %s\n", out)
	}
	return nil
}

func printResult(c *cli.Context, state capture.State) {
	fmt.Fprintf(c.App.Writer, "device: %s  frame: %dx%d  region: %s\n",
		state.DeviceID, state.Frame.Width, state.Frame.Height, state.Rect)
	fmt.Fprintf(c.App.Writer, "count: %d\n", state.Result.Count)

	if len(state.Result.Annotations) > 0 {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Label", "X", "Y", "Confidence"})
		for _, a := range state.Result.Annotations {
			conf := "-"
			if a.Confidence != nil {
				conf = fmt.Sprintf("%.2f", *a.Confidence)
			}
			t.AppendRow(table.Row{a.Label, fmt.Sprintf("%.3f", a.X), fmt.Sprintf("%.3f", a.Y), conf})
		}
		fmt.Fprintln(c.App.Writer, t.Render())
	}
	if state.Advisory != "" {
		fmt.Fprintln(c.App.Writer, state.Advisory)
	}
}

func writeRender(ctx context.Context, editor *capture.Editor, path string) error {
	img, err := editor.Render(ctx)
	if err != nil {
		return err
	}
	data, err := rimage.EncodeImage(ctx, img, utils.MimeTypePNG)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
