package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// PrintEvent outputs one pushed message. JSON output is one object per line.
func (o *Output) PrintEvent(e StreamEvent) {
	if o.format == "json" {
		data, _ := json.Marshal(e)
		_, _ = fmt.Fprintln(o.w, string(data))
		return
	}

	display := strings.ReplaceAll(e.Data, "\n", " ")
	if len(display) > 200 {
		display = display[:200] + "..."
	}
	_, _ = fmt.Fprintf(o.w, "[%s] %s: %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Event, display)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Time        string `json:"time"`
	ActiveUsers int    `json:"activeUsers"`
	ActiveRooms int    `json:"activeRooms"`
}

// StreamEvent is one message received from the server
type StreamEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Message != "" {
		_, _ = fmt.Fprintf(o.w, "Message: %s\n", h.Message)
	}
	_, _ = fmt.Fprintf(o.w, "Server Time: %s\n", h.Time)
	_, _ = fmt.Fprintf(o.w, "Active Users: %d\n", h.ActiveUsers)
	_, _ = fmt.Fprintf(o.w, "Active Rooms: %d\n", h.ActiveRooms)
}
