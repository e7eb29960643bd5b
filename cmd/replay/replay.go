package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/models"
	"github.com/kdimtricp/repcam/internal/pose"
	"github.com/kdimtricp/repcam/internal/session"
	"github.com/kdimtricp/repcam/internal/timeutil"
)

const maxLineSize = 1 << 20

type replayOptions struct {
	Exercise    exercise.Kind
	UserEmail   string
	Duration    time.Duration
	FPS         float64
	Calibration exercise.Calibration
	Configs     exercise.Configs
	Publisher   session.Publisher
	Start       time.Time
}

type replayResult struct {
	Frames  int                   `json:"frames"`
	Skipped int                   `json:"skipped"`
	Record  *models.SessionRecord `json:"record"`
}

// replay feeds recorded frames through a session on a simulated clock that
// advances one frame interval per line. Blank lines and lines starting with
// '#' are ignored.
func replay(r io.Reader, opts replayOptions) (*replayResult, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %f", opts.FPS)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	clock := timeutil.NewMockClock(opts.Start)
	interval := time.Duration(float64(time.Second) / opts.FPS)

	s, err := session.New(session.Options{
		Exercise:    opts.Exercise,
		UserEmail:   opts.UserEmail,
		Duration:    opts.Duration,
		Calibration: opts.Calibration,
		Configs:     opts.Configs,
		Clock:       clock,
		Publisher:   opts.Publisher,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if _, err := s.Start(); err != nil {
		return nil, err
	}
	res := &replayResult{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var msg pose.FrameMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		clock.Advance(interval)
		if _, err := s.ProcessFrame(msg.Frame()); err != nil {
			if errors.Is(err, session.ErrNotActive) {
				res.Skipped++
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		res.Frames++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading frames: %w", err)
	}

	rec, err := s.Stop()
	if errors.Is(err, session.ErrNotActive) {
		rec = s.LastRecord()
	} else if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("session produced no record")
	}
	res.Record = rec
	return res, nil
}
