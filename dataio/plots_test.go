package dataio

import (
	"bytes"
	"os"
	"testing"

	spacez "github.com/DavaToros/SpaceZ"
)

func trajectory(n int) spacez.Trajectory {
	traj := spacez.Trajectory{Status: spacez.Completed}
	for i := 0; i < n; i++ {
		t := float64(i)
		traj.Samples = append(traj.Samples, spacez.Sample{T: t, Altitude: t * t, Speed: 2 * t, State: spacez.State{M: 100 - t}})
	}
	return traj
}

func TestWritePNG(t *testing.T) {
	telemetry := []spacez.TelemetryPoint{{T: 0}, {T: 5, Altitude: 20, Speed: 9}, {T: 9, Altitude: 70, Speed: 17}}
	p, err := NewPlot("test", Altitude, trajectory(10), telemetry)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WritePNG(&buf, p); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("not a PNG")
	}
}

func TestNewPlotEmpty(t *testing.T) {
	if _, err := NewPlot("empty", Speed, spacez.Trajectory{}, nil); err == nil {
		t.Fatal("expected an error for an empty trajectory")
	}
}

func TestSaveAll(t *testing.T) {
	dir := t.TempDir()
	files, err := SaveAll(dir, "run", trajectory(20), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected two files, got %v", files)
	}
	for _, f := range files {
		if st, err := os.Stat(f); err != nil || st.Size() == 0 {
			t.Fatalf("%s not written: %v", f, err)
		}
	}
}

func TestDecimate(t *testing.T) {
	traj := trajectory(101)
	dec := Decimate(traj, 11)
	if dec.Len() != 11 {
		t.Fatalf("len=%d", dec.Len())
	}
	if dec.Samples[0].T != 0 || dec.Final().T != 100 || dec.Samples[5].T != 50 {
		t.Fatalf("incorrect decimation: %v %v %v", dec.Samples[0].T, dec.Samples[5].T, dec.Final().T)
	}
	if Decimate(traj, 500).Len() != 101 {
		t.Fatal("short trajectories must be kept")
	}
}
