package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/kdimtricp/repcam/internal/config"
	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/recorder"
	"github.com/kdimtricp/repcam/internal/storage"
)

func main() {
	var (
		exerciseName = flag.String("exercise", "", "Exercise to replay (dumbbell_curl, situp, vertical_jump, height_weight)")
		file         = flag.String("file", "-", "JSON lines file with one frame per line, - for stdin")
		duration     = flag.Duration("duration", 0, "Session time limit, 0 for the exercise default")
		fps          = flag.Float64("fps", 30, "Frame rate the frames were captured at")
		user         = flag.String("user", "", "User email stored on the record")
		ppcm         = flag.Float64("ppcm", 0, "Pixels per cm calibration")
		height       = flag.Float64("height", 0, "Subject height in cm for jump calibration")
		tuningPath   = flag.String("tuning", "", "Tuning config JSON")
		outDir       = flag.String("out", "", "Archive the record as JSON into this directory")
	)
	flag.Parse()

	if *exerciseName == "" {
		log.Fatal("Please provide an exercise with -exercise flag")
	}
	kind, err := exercise.ParseKind(*exerciseName)
	if err != nil {
		log.Fatal(err)
	}

	tuning := config.EmptyTuningConfig()
	if *tuningPath != "" {
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatal("Failed to load tuning config:", err)
		}
	}
	configs := tuning.ExerciseConfigs()

	opts := replayOptions{
		Exercise:  kind,
		UserEmail: *user,
		Duration:  *duration,
		FPS:       *fps,
		Calibration: exercise.Calibration{
			PixelsPerCm:     *ppcm,
			SubjectHeightCm: *height,
		},
		Configs: configs,
	}
	if opts.Duration == 0 && kind == exercise.KindSitup {
		opts.Duration = configs.Situp.Duration()
	}
	if err := opts.Calibration.Validate(); err != nil {
		log.Fatal(err)
	}

	var rec *recorder.Recorder
	if *outDir != "" {
		store, err := storage.NewLocalStorage(*outDir)
		if err != nil {
			log.Fatal("Failed to initialize storage:", err)
		}
		rec = recorder.New(recorder.Config{}, storage.NewResultArchive(store))
		rec.Start(context.Background())
		opts.Publisher = rec
	}

	var in io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("Failed to open frames:", err)
		}
		defer f.Close()
		in = f
	}

	result, err := replay(in, opts)
	if err != nil {
		log.Fatal("Replay failed:", err)
	}

	if rec != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rec.Close(ctx); err != nil {
			log.Printf("Warning: archive incomplete: %v", err)
		}
		if stats := rec.Stats(); stats.Failures > 0 {
			log.Printf("Warning: %d archive writes failed", stats.Failures)
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}
