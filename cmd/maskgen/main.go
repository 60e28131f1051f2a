// Command maskgen is the offline depth-clip-mask calibration tool: point it
// at three pixel coordinates on the current depth frame, and it fits,
// offsets, and rasterizes the clip-mask plane described in internal/mask,
// then persists it to the canonical .npy file internal/frame reads at
// startup.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/marcan/kinlarm/internal/device"
	"github.com/marcan/kinlarm/internal/frame"
	"github.com/marcan/kinlarm/internal/hub"
	"github.com/marcan/kinlarm/internal/mask"
)

func main() {
	var (
		outF = flag.String("out", "depth_filter.npy", "output clip-mask path")
		u1   = flag.Int("u1", 0, "click 1 column")
		v1   = flag.Int("v1", 0, "click 1 row")
		u2   = flag.Int("u2", 0, "click 2 column")
		v2   = flag.Int("v2", 0, "click 2 row")
		u3   = flag.Int("u3", 0, "click 3 column")
		v3   = flag.Int("v3", 0, "click 3 row")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[maskgen] ", log.Ltime)

	drv := device.NewSimulated()
	h := hub.New(drv, false, logger)
	go h.Run()
	defer h.Stop()

	sub, err := h.SubscribeDepth(1)
	if err != nil {
		logger.Fatalf("subscribe depth: %v", err)
	}
	defer sub.Unsubscribe()

	df, _, err := sub.Next()
	if err != nil {
		logger.Fatalf("capture depth frame: %v", err)
	}
	// Drop a couple more frames so a simulated/just-opened device has settled.
	for i := 0; i < 2; i++ {
		if next, _, err := sub.Next(); err == nil {
			df = next
		}
		time.Sleep(10 * time.Millisecond)
	}

	clicks := [3]mask.Click{
		{U: *u1, V: *v1, Raw: df.At(*u1, *v1)},
		{U: *u2, V: *v2, Raw: df.At(*u2, *v2)},
		{U: *u3, V: *v3, Raw: df.At(*u3, *v3)},
	}

	clip, err := mask.Generate(clicks, mask.DefaultIntrinsics(), mask.DefaultDepthCoeffs(), df.W, df.H)
	if err != nil {
		logger.Fatalf("generate clip mask: %v", err)
	}

	if err := frame.SaveClipMask(*outF, clip); err != nil {
		logger.Fatalf("save clip mask: %v", err)
	}
	logger.Printf("clip mask written to %s (%dx%d)", *outF, clip.W, clip.H)
}
