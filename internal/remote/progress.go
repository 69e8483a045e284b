package remote

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// BarProgress renders a byte progress bar on w for every streamed download
func BarProgress(w io.Writer) ProgressFunc {
	return func(r io.Reader, size int64, description string) io.Reader {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		)
		reader := progressbar.NewReader(r, bar)
		return &reader
	}
}
