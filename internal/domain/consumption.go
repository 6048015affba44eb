package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EnergyUnit is the unit a reading was reported in. Values are stored as
// reported; no conversion happens on write.
type EnergyUnit string

const (
	UnitWh  EnergyUnit = "Wh"
	UnitKWh EnergyUnit = "kWh"
	UnitMWh EnergyUnit = "MWh"
	UnitJ   EnergyUnit = "J"
	UnitKJ  EnergyUnit = "kJ"
	UnitMJ  EnergyUnit = "MJ"
)

var energyUnits = []EnergyUnit{UnitWh, UnitKWh, UnitMWh, UnitJ, UnitKJ, UnitMJ}

// ParseEnergyUnit normalizes a unit string ("KWH", " kwh ") to its canonical form.
func ParseEnergyUnit(s string) (EnergyUnit, error) {
	s = strings.TrimSpace(s)
	for _, u := range energyUnits {
		if strings.EqualFold(s, string(u)) {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown energy unit %q", s)
}

// RecordSource identifies how a reading entered the system.
type RecordSource string

const (
	SourceManual RecordSource = "manual"
	SourceCSV    RecordSource = "csv"
	SourceAPI    RecordSource = "api"
	SourceSensor RecordSource = "sensor"
)

// Valid reports whether s is a known source.
func (s RecordSource) Valid() bool {
	switch s {
	case SourceManual, SourceCSV, SourceAPI, SourceSensor:
		return true
	}
	return false
}

// Cost is the optional monetary value attached to a reading.
type Cost struct {
	Amount   decimal.NullDecimal `json:"amount" gorm:"type:numeric(18,6)"`
	Currency string              `json:"currency" gorm:"size:3"`
	Rate     decimal.NullDecimal `json:"rate" gorm:"type:numeric(18,6)"`
}

// AnomalyFlag is the detector's verdict on a single reading.
// Reviewed is only ever set by an explicit review action.
type AnomalyFlag struct {
	Detected   bool       `json:"detected"`
	Score      float64    `json:"score"`
	Method     string     `json:"method"`
	Reviewed   bool       `json:"reviewed"`
	FlaggedAt  *time.Time `json:"flagged_at,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
}

// ConsumptionRecord is one observed energy reading.
type ConsumptionRecord struct {
	ID        string       `json:"id" gorm:"primaryKey;size:36"`
	DeviceID  string       `json:"device_id" gorm:"size:64;not null;index:idx_consumption_device_ts,priority:1"`
	UserID    string       `json:"user_id" gorm:"size:64;not null;index"`
	Timestamp time.Time    `json:"timestamp" gorm:"not null;index:idx_consumption_device_ts,priority:2"`
	Value     float64      `json:"value" gorm:"not null"`
	Unit      EnergyUnit   `json:"unit" gorm:"size:8;not null"`
	Cost      *Cost        `json:"cost,omitempty" gorm:"embedded;embeddedPrefix:cost_"`
	Anomaly   *AnomalyFlag `json:"anomaly,omitempty" gorm:"embedded;embeddedPrefix:anomaly_"`
	Source    RecordSource `json:"source" gorm:"size:16;not null"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName pins the table name used by the SQL store.
func (ConsumptionRecord) TableName() string {
	return "consumption_records"
}

// ConsumptionStats are aggregate statistics over a device's readings in a window.
type ConsumptionStats struct {
	DeviceID string    `json:"device_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Count    int64     `json:"count"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"std_dev"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
}
