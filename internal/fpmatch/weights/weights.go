// Package weights holds the fixed, immutable CNN weight blob the embedding
// network (fpmatch component D) evaluates. It is loaded once at process
// start and never reloaded or mutated, matching §3's "Network weights"
// ownership rule.
package weights

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Conv holds one 3x3 convolution's weights ([outC][inC][3][3]) and biases
// ([outC]).
type Conv struct {
	OutC, InC int
	W         [][][3][3]float32
	B         []float32
}

// FC holds one fully-connected layer's weights ([out][in]) and biases
// ([out]).
type FC struct {
	Out, In int
	W       [][]float32
	B       []float32
}

// Weights is the complete immutable parameter set for the 4-conv + 2-FC
// embedding network of §4.4.
type Weights struct {
	Conv1, Conv2, Conv3, Conv4 Conv
	FC1, FC2                   FC
}

// topology mirrors the table in spec §4.4.
var topology = struct {
	conv [4]struct{ inC, outC int }
	fc   [2]struct{ in, out int }
}{
	conv: [4]struct{ inC, outC int }{
		{1, 16},
		{16, 32},
		{32, 64},
		{64, 128},
	},
	fc: [2]struct{ in, out int }{
		{1024, 256},
		{256, 64},
	},
}

func newConv(inC, outC int) Conv {
	w := make([][][3][3]float32, outC)
	for oc := range w {
		w[oc] = make([][3][3]float32, inC)
	}
	return Conv{OutC: outC, InC: inC, W: w, B: make([]float32, outC)}
}

func newFC(in, out int) FC {
	w := make([][]float32, out)
	for o := range w {
		w[o] = make([]float32, in)
	}
	return FC{Out: out, In: in, W: w, B: make([]float32, out)}
}

// Zero returns a correctly-shaped Weights with every parameter at zero. It
// is the shape any real loaded blob must match; production deployments
// populate one via Load from the trained parameter file.
func Zero() *Weights {
	return &Weights{
		Conv1: newConv(topology.conv[0].inC, topology.conv[0].outC),
		Conv2: newConv(topology.conv[1].inC, topology.conv[1].outC),
		Conv3: newConv(topology.conv[2].inC, topology.conv[2].outC),
		Conv4: newConv(topology.conv[3].inC, topology.conv[3].outC),
		FC1:   newFC(topology.fc[0].in, topology.fc[0].out),
		FC2:   newFC(topology.fc[1].in, topology.fc[1].out),
	}
}

// Load reads a flat little-endian float32 parameter blob in
// Conv1.W,Conv1.B,Conv2.W,Conv2.B,Conv3.W,Conv3.B,Conv4.W,Conv4.B,FC1.W,FC1.B,
// FC2.W,FC2.B order — the same order the shapes are declared in Weights —
// and returns the populated, immutable blob. Intended to run once at
// process start against the trained parameter file named by the host.
func Load(r io.Reader) (*Weights, error) {
	w := Zero()
	convs := []*Conv{&w.Conv1, &w.Conv2, &w.Conv3, &w.Conv4}
	for _, c := range convs {
		if err := readConv(r, c); err != nil {
			return nil, fmt.Errorf("weights: read conv: %w", err)
		}
	}
	fcs := []*FC{&w.FC1, &w.FC2}
	for _, f := range fcs {
		if err := readFC(r, f); err != nil {
			return nil, fmt.Errorf("weights: read fc: %w", err)
		}
	}
	return w, nil
}

func readF32(r io.Reader) (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint32(buf[:])
	return math.Float32frombits(bits), nil
}

func readConv(r io.Reader, c *Conv) error {
	for oc := 0; oc < c.OutC; oc++ {
		for ic := 0; ic < c.InC; ic++ {
			for ky := 0; ky < 3; ky++ {
				for kx := 0; kx < 3; kx++ {
					v, err := readF32(r)
					if err != nil {
						return err
					}
					c.W[oc][ic][ky][kx] = v
				}
			}
		}
	}
	for oc := 0; oc < c.OutC; oc++ {
		v, err := readF32(r)
		if err != nil {
			return err
		}
		c.B[oc] = v
	}
	return nil
}

func readFC(r io.Reader, f *FC) error {
	for o := 0; o < f.Out; o++ {
		for i := 0; i < f.In; i++ {
			v, err := readF32(r)
			if err != nil {
				return err
			}
			f.W[o][i] = v
		}
	}
	for o := 0; o < f.Out; o++ {
		v, err := readF32(r)
		if err != nil {
			return err
		}
		f.B[o] = v
	}
	return nil
}
