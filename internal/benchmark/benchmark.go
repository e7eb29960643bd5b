package benchmark

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	ErrNoAthletes        = errors.New("athlete dataset not loaded")
	ErrIncompleteProfile = errors.New("incomplete user profile")
)

// genderPenalty is added to the distance when genders differ.
const genderPenalty = 100

var requiredColumns = []string{
	"Height_cm", "Weight_kg", "Age", "Gender",
	"Situps_per_min", "Vertical_Jump_cm", "Dumbbell_Curl_per_min",
}

type Athlete struct {
	HeightCm       float64 `json:"height_cm"`
	WeightKg       float64 `json:"weight_kg"`
	Age            float64 `json:"age"`
	Gender         string  `json:"gender"`
	SitupsPerMin   float64 `json:"situps_per_min"`
	VerticalJumpCm float64 `json:"vertical_jump_cm"`
	CurlsPerMin    float64 `json:"dumbbell_curl_per_min"`
}

type Profile struct {
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
	Age      float64 `json:"age"`
	Gender   string  `json:"gender"`
}

func (p Profile) Complete() bool {
	return p.HeightCm > 0 && p.WeightKg > 0 && p.Age > 0 && strings.TrimSpace(p.Gender) != ""
}

// Targets are per-exercise goals taken from the closest athlete.
type Targets struct {
	Situp        float64 `json:"situp"`
	VerticalJump float64 `json:"vertical_jump"`
	Dumbbell     float64 `json:"dumbbell"`
	Match        Athlete `json:"match"`
	Distance     float64 `json:"distance"`
}

type Table struct {
	athletes []Athlete
}

func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open athlete data: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("[BENCH] Loaded %d athletes from %s", t.Len(), path)
	return t, nil
}

// Load parses athlete rows. Columns are located by header name; extra
// columns are ignored.
func Load(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	t := &Table{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var a Athlete
		nums := map[string]*float64{
			"Height_cm":             &a.HeightCm,
			"Weight_kg":             &a.WeightKg,
			"Age":                   &a.Age,
			"Situps_per_min":        &a.SitupsPerMin,
			"Vertical_Jump_cm":      &a.VerticalJumpCm,
			"Dumbbell_Curl_per_min": &a.CurlsPerMin,
		}
		for col, dst := range nums {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[index[col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, col, err)
			}
			*dst = v
		}
		a.Gender = strings.TrimSpace(record[index["Gender"]])
		t.athletes = append(t.athletes, a)
	}

	return t, nil
}

func NewTable(athletes []Athlete) *Table {
	return &Table{athletes: append([]Athlete(nil), athletes...)}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.athletes)
}

func distance(a Athlete, p Profile) float64 {
	d := math.Abs(a.HeightCm-p.HeightCm) + math.Abs(a.WeightKg-p.WeightKg) + math.Abs(a.Age-p.Age)
	if !strings.EqualFold(a.Gender, strings.TrimSpace(p.Gender)) {
		d += genderPenalty
	}
	return d
}

// Match returns the athlete closest to p. Ties go to the earliest row.
func (t *Table) Match(p Profile) (Athlete, float64, error) {
	if t.Len() == 0 {
		return Athlete{}, 0, ErrNoAthletes
	}
	if !p.Complete() {
		return Athlete{}, 0, ErrIncompleteProfile
	}

	best, bestDist := 0, math.Inf(1)
	for i, a := range t.athletes {
		if d := distance(a, p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return t.athletes[best], bestDist, nil
}

func (t *Table) Targets(p Profile) (Targets, error) {
	a, d, err := t.Match(p)
	if err != nil {
		return Targets{}, err
	}
	return Targets{
		Situp:        a.SitupsPerMin,
		VerticalJump: a.VerticalJumpCm,
		Dumbbell:     a.CurlsPerMin,
		Match:        a,
		Distance:     d,
	}, nil
}
