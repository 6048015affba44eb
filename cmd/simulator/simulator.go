package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SimulatorConfig shapes the generated readings.
type SimulatorConfig struct {
	Devices       int
	DevicePrefix  string
	Points        int
	Start         time.Time
	Interval      time.Duration
	Unit          string
	BaseLoad      float64
	Noise         float64
	OutlierRate   float64
	OutlierFactor float64
	MalformedRate float64
	Seed          int64
}

// Stats counts what was written.
type Stats struct {
	Rows      int
	Outliers  int
	Malformed int
}

type Simulator struct {
	cfg SimulatorConfig
	rng *rand.Rand
	log *zap.Logger
}

func NewSimulator(cfg SimulatorConfig, log *zap.Logger) *Simulator {
	if cfg.DevicePrefix == "" {
		cfg.DevicePrefix = "meter-"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Unit == "" {
		cfg.Unit = "kWh"
	}
	if cfg.OutlierFactor == 0 {
		cfg.OutlierFactor = 8
	}
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		log: log,
	}
}

// DeviceID returns the id of the i-th simulated device.
func (s *Simulator) DeviceID(i int) string {
	return fmt.Sprintf("%s%03d", s.cfg.DevicePrefix, i+1)
}

// Write emits a header and Points rows per device, interleaved by time.
func (s *Simulator) Write(w io.Writer) (Stats, error) {
	var stats Stats
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"deviceId", "timestamp", "value", "unit"}); err != nil {
		return stats, err
	}

	for p := 0; p < s.cfg.Points; p++ {
		ts := s.cfg.Start.Add(time.Duration(p) * s.cfg.Interval).UTC()
		for d := 0; d < s.cfg.Devices; d++ {
			row := []string{
				s.DeviceID(d),
				ts.Format(time.RFC3339),
				"",
				s.cfg.Unit,
			}

			value := s.reading(d, ts)
			if s.rng.Float64() < s.cfg.OutlierRate {
				value *= s.cfg.OutlierFactor
				stats.Outliers++
			}
			row[2] = strconv.FormatFloat(value, 'f', 3, 64)

			if s.rng.Float64() < s.cfg.MalformedRate {
				s.corrupt(row)
				stats.Malformed++
			}

			if err := cw.Write(row); err != nil {
				return stats, err
			}
			stats.Rows++
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, err
	}

	s.log.Info("Simulated readings written",
		zap.Int("rows", stats.Rows),
		zap.Int("outliers", stats.Outliers),
		zap.Int("malformed", stats.Malformed),
	)
	return stats, nil
}

// reading is a daily load curve with per-device scale and gaussian noise.
// It never goes below zero.
func (s *Simulator) reading(device int, ts time.Time) float64 {
	scale := 1 + 0.1*float64(device%5)
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	daily := 1 + 0.35*math.Sin(2*math.Pi*(hour-6)/24)
	v := s.cfg.BaseLoad*scale*daily + s.cfg.Noise*s.rng.NormFloat64()
	return math.Max(v, 0)
}

// corrupt breaks one field so the ingestion pipeline rejects the row.
func (s *Simulator) corrupt(row []string) {
	switch s.rng.Intn(4) {
	case 0:
		row[0] = ""
	case 1:
		row[1] = "yesterday"
	case 2:
		row[2] = "n/a"
	default:
		row[3] = "horsepower"
	}
}
