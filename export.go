package spacez

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// SampleSink receives every sample of an ascent, in time order, from the goroutine propagating it.
type SampleSink interface {
	Publish(Sample)
}

// SinkFunc adapts a function into a SampleSink.
type SinkFunc func(Sample)

// Publish implements the SampleSink interface.
func (f SinkFunc) Publish(s Sample) {
	f(s)
}

// ExportConfig configures the exporting of the simulation.
type ExportConfig struct {
	Filename  string
	OutputDir string // defaults to the working directory
	AsCSV     bool
	Timestamp bool
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV || c.Filename == ""
}

// Path returns the path of the CSV file for this export.
func (c ExportConfig) Path() string {
	name := c.Filename
	if c.Timestamp {
		t := time.Now()
		name = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", name, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(c.OutputDir, name+".csv")
}

// CSVRecord returns the sample as a `t,speed,altitude,accel,mass` record with two decimals.
func CSVRecord(s Sample) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f,%.2f", s.T, s.Speed, s.Altitude, s.Accel, s.State.M)
}

// WriteCSV writes all the samples as records, one per line.
func WriteCSV(w io.Writer, samples []Sample) error {
	bw := bufio.NewWriter(w)
	for _, s := range samples {
		if _, err := bw.WriteString(CSVRecord(s) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// StreamSamples streams the output of the channel to the file of the export configuration until the channel
// is closed. The channel is always drained, even if the file cannot be written.
func StreamSamples(conf ExportConfig, sampleChan <-chan Sample) (err error) {
	defer func() {
		for range sampleChan {
		}
	}()
	f, err := os.Create(conf.Path())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	for sample := range sampleChan {
		if _, err = w.WriteString(CSVRecord(sample) + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
