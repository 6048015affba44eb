package ingestion

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

// Normalized header names. Matching ignores case, spaces and underscores,
// so deviceId, device_id and DEVICE_ID are the same column.
const (
	colDeviceID  = "deviceid"
	colValue     = "value"
	colUnit      = "unit"
	colTimestamp = "timestamp"
	colCost      = "cost"
	colCurrency  = "currency"
	colRate      = "rate"
)

var requiredColumns = []string{colDeviceID, colValue, colUnit}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// header maps normalized column names to their index in a row.
type header map[string]int

func parseHeader(cols []string) (header, error) {
	h := make(header, len(cols))
	for i, c := range cols {
		if i == 0 {
			c = strings.TrimPrefix(c, "\ufeff")
		}
		name := normalizeColumn(c)
		if _, dup := h[name]; dup {
			return nil, domain.NewValidationError("header", "duplicate column "+strings.TrimSpace(c))
		}
		h[name] = i
	}

	var missing []string
	for _, req := range requiredColumns {
		if _, ok := h[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewValidationError("header", "missing required column(s): "+strings.Join(missing, ", "))
	}
	return h, nil
}

func normalizeColumn(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(c)
}

func (h header) field(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// reading is a CSV row or API input that passed field validation.
type reading struct {
	DeviceID  string
	Timestamp time.Time
	Value     float64
	Unit      domain.EnergyUnit
	Cost      *domain.Cost
}

func parseRow(h header, rec []string, now time.Time) (*reading, error) {
	r := &reading{DeviceID: h.field(rec, colDeviceID)}
	if r.DeviceID == "" {
		return nil, domain.NewValidationError("deviceId", "missing")
	}

	value, err := parseValue(h.field(rec, colValue))
	if err != nil {
		return nil, err
	}
	r.Value = value

	unit, err := parseUnit(h.field(rec, colUnit))
	if err != nil {
		return nil, err
	}
	r.Unit = unit

	r.Timestamp, err = parseTimestamp(h.field(rec, colTimestamp), now)
	if err != nil {
		return nil, err
	}

	r.Cost, err = parseCost(h.field(rec, colCost), h.field(rec, colCurrency), h.field(rec, colRate))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func parseValue(s string) (float64, error) {
	if s == "" {
		return 0, domain.NewValidationError("value", "missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.NewValidationError("value", "not a number: "+s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.NewValidationError("value", "must be finite")
	}
	return v, nil
}

func parseUnit(s string) (domain.EnergyUnit, error) {
	if s == "" {
		return "", domain.NewValidationError("unit", "missing")
	}
	u, err := domain.ParseEnergyUnit(s)
	if err != nil {
		return "", domain.NewValidationError("unit", err.Error())
	}
	return u, nil
}

func parseTimestamp(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.NewValidationError("timestamp", "unrecognized format: "+s)
}

func parseCost(amount, currency, rate string) (*domain.Cost, error) {
	if amount == "" && currency == "" && rate == "" {
		return nil, nil
	}

	c := &domain.Cost{Currency: strings.ToUpper(currency)}
	if c.Currency != "" && len(c.Currency) != 3 {
		return nil, domain.NewValidationError("currency", "must be a 3-letter code")
	}
	if amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, domain.NewValidationError("cost", "not a decimal: "+amount)
		}
		c.Amount = decimal.NewNullDecimal(d)
	}
	if rate != "" {
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, domain.NewValidationError("rate", "not a decimal: "+rate)
		}
		c.Rate = decimal.NewNullDecimal(d)
	}
	return c, nil
}
