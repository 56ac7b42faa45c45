package capture

import (
	"bytes"
	"fmt"

	"github.com/your-org/ft9362/internal/fpmatch"
)

// EncodePGM renders a normalized image as an 8-bit grayscale PGM (P5), the
// same format original_source/driver/focaltech-0752.c's save_debug_pgm
// writes to /tmp/fprint-debug-nn/<finger>/. It only encodes; nothing in the
// service calls it or stores its output.
func EncodePGM(img fpmatch.Image) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P5\n%d %d\n255\n", fpmatch.ImageWidth, fpmatch.ImageHeight)
	for _, v := range img {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		buf.WriteByte(byte(v * 255))
	}
	return buf.Bytes()
}
