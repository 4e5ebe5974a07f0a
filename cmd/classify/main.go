package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "github.com/jo-hoe/goinfer/internal/backend"
	"github.com/jo-hoe/goinfer/internal/backend/inprocess"
	"github.com/jo-hoe/goinfer/internal/detect"
	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/session"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

func main() {
	modelPath := flag.String("model", "", "path to the model descriptor (required)")
	useInprocess := flag.Bool("inprocess", false, "run the in-process backend instead of the build default")
	asJSON := flag.Bool("json", false, "print detections as JSON")
	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: classify [flags] <image>\n\nruns one detection pass over an image and prints the results\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(runtime.Info())
		return
	}

	// Logging goes to stderr; stdout carries the results.
	if err := telemetry.Setup(os.Stderr); err != nil {
		fail("failed to set up logging: %v", err)
	}

	if *modelPath == "" || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if *useInprocess {
		if err := runtime.Use(inprocess.New()); err != nil {
			fail("failed to install in-process backend: %v", err)
		}
	}

	imageData, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fail("failed to read image: %v", err)
	}

	ctx := context.Background()
	sess, err := session.NewBuilder().CommitFromFile(ctx, *modelPath)
	if err != nil {
		fail("failed to open model: %v", err)
	}
	defer func() {
		_ = sess.Close()
	}()

	detector, err := detect.New(sess, detect.Options{})
	if err != nil {
		fail("failed to create detector: %v", err)
	}

	detections, err := detector.DetectBytes(ctx, imageData)
	if err != nil {
		fail("detection failed: %v", err)
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(detections); err != nil {
			fail("failed to encode results: %v", err)
		}
		return
	}

	if len(detections) == 0 {
		fmt.Println("no objects detected")
		return
	}
	for _, detection := range detections {
		fmt.Printf("label %d score %.2f box (%.0f,%.0f)-(%.0f,%.0f) color %s\n",
			detection.Label, detection.Score,
			detection.Box.X1, detection.Box.Y1, detection.Box.X2, detection.Box.Y2,
			detection.Color)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
