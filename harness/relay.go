package harness

import (
	"io"

	"github.com/revel/devproxy/metrics"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

// Relay writes each chunk of lines verbatim to dest until lines is closed.
// Both streams go to the same writer, like a terminal would show them.
func Relay(dest io.Writer, lines <-chan model.OutputLine, m *metrics.Metrics) {
	failed := false
	for line := range lines {
		if m != nil {
			m.OutputBytes.WithLabelValues(line.Stream.String()).Add(float64(len(line.Data)))
		}
		if failed {
			// Keep draining so the backend never blocks on a full pipe.
			continue
		}
		if _, err := dest.Write(line.Data); err != nil {
			utils.Logger.Error("Backend output relay failed", "error", err)
			failed = true
		}
	}
}
