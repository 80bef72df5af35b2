package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/linkrank/internal/telemetry"
	"github.com/papapumpkin/linkrank/internal/ui"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry <file>",
	Short: "View JSONL run events",
	Long: `Reads and formats a JSONL telemetry file written by "linkrank rank --telemetry".

With --run, only events of that run are shown. With --follow (-f), watches the
file for new events (like tail -f) until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runTelemetry,
}

func init() {
	telemetryCmd.Flags().String("run", "", "show only events of this run")
	telemetryCmd.Flags().BoolP("follow", "f", false, "follow the file for new events")
	rootCmd.AddCommand(telemetryCmd)
}

func runTelemetry(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	follow, _ := cmd.Flags().GetBool("follow")
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	defer f.Close()

	v := eventViewer{w: cmd.OutOrStdout(), runID: runID}
	reader := bufio.NewReader(f)
	if err := v.drain(reader); err != nil {
		return fmt.Errorf("telemetry: read %s: %w", path, err)
	}
	if !follow {
		return nil
	}

	ctx, cancel := setupSignalContext(ui.New())
	defer cancel()
	return v.follow(ctx, reader, path)
}

// eventViewer prints telemetry lines, optionally for a single run.
type eventViewer struct {
	w     io.Writer
	runID string
}

// drain prints every complete line available from r.
func (v eventViewer) drain(r *bufio.Reader) error {
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			v.print(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// follow watches path with fsnotify and prints events appended to it.
func (v eventViewer) follow(ctx context.Context, r *bufio.Reader, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("telemetry: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("telemetry: watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			if err := v.drain(r); err != nil {
				return fmt.Errorf("telemetry: read %s: %w", path, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("telemetry: watch %s: %w", path, err)
		}
	}
}

// print decodes a JSONL line and prints a human-readable representation.
func (v eventViewer) print(line string) {
	var evt telemetry.Event
	if err := json.Unmarshal([]byte(line), &evt); err != nil {
		fmt.Fprintf(v.w, "??? %s\n", line)
		return
	}
	if v.runID != "" && evt.RunID != v.runID {
		return
	}
	fmt.Fprintln(v.w, formatEvent(evt))
}

func formatEvent(evt telemetry.Event) string {
	parts := []string{fmt.Sprintf("[%s]", evt.Timestamp.Format(time.TimeOnly)), evt.Kind}
	if evt.RunID != "" {
		parts = append(parts, "run="+shortID(evt.RunID))
	}
	if evt.Method != "" {
		parts = append(parts, "method="+evt.Method)
	}
	if evt.Data != nil {
		if m, ok := evt.Data.(map[string]any); ok {
			parts = append(parts, formatDataMap(m))
		} else {
			data, _ := json.Marshal(evt.Data)
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, " ")
}

// shortID trims a UUID to its first group.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// formatDataMap formats a data map as key=value pairs sorted by key.
func formatDataMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, m[k])
	}
	return b.String()
}
