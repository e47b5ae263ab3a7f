package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// MarkerField is the entry field holding a marker name.
const MarkerField = "marker"

// Known markers.
const (
	// MarkerOSCmd marks the command line of every executed system command.
	MarkerOSCmd = "os_cmd"
	// MarkerStop marks out-of-band stop requests.
	MarkerStop = "stop_request"
)

// AllMarkers returns every marker the filter recognizes.
func AllMarkers() []string {
	return []string{MarkerOSCmd, MarkerStop}
}

// MarkerFilterHook forwards entries carrying one of its markers to a sink and
// drops everything else. It never alters the entry or the main output.
type MarkerFilterHook struct {
	markers map[string]struct{}
	sink    func(*logrus.Entry) error
}

// NewMarkerFilterHook creates a hook passing marked entries to sink. With no
// markers given, every marker in AllMarkers is accepted.
func NewMarkerFilterHook(sink func(*logrus.Entry) error, markers ...string) *MarkerFilterHook {
	if len(markers) == 0 {
		markers = AllMarkers()
	}
	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		set[m] = struct{}{}
	}
	return &MarkerFilterHook{markers: set, sink: sink}
}

// NewWriterHook creates a hook writing marked entries to w using formatter.
func NewWriterHook(w io.Writer, formatter logrus.Formatter, markers ...string) *MarkerFilterHook {
	var mu sync.Mutex
	return NewMarkerFilterHook(func(e *logrus.Entry) error {
		line, err := formatter.Format(e)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = w.Write(line)
		return err
	}, markers...)
}

// Levels implements logrus.Hook.
func (h *MarkerFilterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *MarkerFilterHook) Fire(e *logrus.Entry) error {
	if !h.Matches(e) {
		return nil
	}
	return h.sink(e)
}

// Matches reports whether e carries an accepted marker.
func (h *MarkerFilterHook) Matches(e *logrus.Entry) bool {
	if e == nil {
		return false
	}
	marker, ok := e.Data[MarkerField].(string)
	if !ok {
		return false
	}
	_, ok = h.markers[marker]
	return ok
}
