package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"    _                    _                       _     ", "#818cf8"},
	{"   /_\\  __ _ ___ _ _  | |_ __ _ _ _ __ _ _ __| |_   ", "#a78bfa"},
	{"  / _ \\/ _` / -_) ' \\ |  _/ _` | '_/ _` | '_ \\ ' \\  ", "#c084fc"},
	{" /_/ \\_\\__, \\___|_||_| \\__\\__, |_| \\__,_| .__/_||_| ", "#e879f9"},
	{"       |___/              |___/          |_|         ", "#f472b6"},
}

// PrintBanner writes the colored startup banner to w.
// Colors degrade to the terminal's profile; plain text when w is not a TTY.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String("  agent graph runtime "+version).Faint())
	}
	fmt.Fprintln(w)
}
