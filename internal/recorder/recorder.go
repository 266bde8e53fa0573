package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
)

// Recorder buffers one observability record per processed cycle and writes
// them out as a timestamped CSV file during shutdown. Failed steps leave the
// corresponding columns empty.
type Recorder struct {
	mu      sync.Mutex
	rows    [][]string
	dir     string
	flushed bool
}

func New(dir string) *Recorder {
	return &Recorder{dir: dir}
}

// Record appends one cycle record. currentLoad and forecast may be nil when
// the corresponding pipeline step did not produce a value this cycle.
func (r *Recorder) Record(targetID string, replicas int, currentLoad, forecast *float64) {
	row := []string{
		time.Now().Format("2006-01-02 15:04:05"),
		targetID,
		strconv.Itoa(replicas),
		formatValue(currentLoad),
		formatValue(forecast),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
}

func formatValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Len reports the number of buffered records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Flush writes all buffered records to a timestamped CSV file. Safe to call
// more than once; only the first call writes.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flushed {
		return nil
	}

	filename := filepath.Join(r.dir, fmt.Sprintf("autoscaler_log_%s.csv", time.Now().Format("20060102_150405")))

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create record file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"timestamp", "target_id", "current_replicas", "current_load", "forecast"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(r.rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	r.flushed = true
	logger.Infof("Decision log written: %s (%d records)", filename, len(r.rows))
	return nil
}
