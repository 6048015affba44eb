package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/service/auth"
	"github.com/seu-repo/energy-sentinel/pkg/config"
)

var (
	output        = flag.String("out", "-", "Output CSV file, - for stdout")
	devices       = flag.Int("devices", 5, "Number of devices")
	prefix        = flag.String("prefix", "meter-", "Device ID prefix")
	points        = flag.Int("points", 24*14, "Readings per device")
	interval      = flag.Duration("interval", time.Hour, "Time between readings")
	start         = flag.String("start", "", "First timestamp (RFC3339), defaults to points*interval ago")
	unit          = flag.String("unit", "kWh", "Energy unit")
	baseLoad      = flag.Float64("base", 1.2, "Base load per interval")
	noise         = flag.Float64("noise", 0.1, "Standard deviation of the noise")
	outlierRate   = flag.Float64("outliers", 0.002, "Fraction of readings turned into outliers")
	outlierFactor = flag.Float64("outlier-factor", 8, "Multiplier applied to outliers")
	malformedRate = flag.Float64("malformed", 0, "Fraction of rows with a broken field")
	seed          = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	issueToken    = flag.String("issue-token", "", "Print a bearer token for this user id and exit")
	tokenRole     = flag.String("role", "user", "Role for -issue-token")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *issueToken != "" {
		if err := printToken(*issueToken, domain.Role(*tokenRole), logger); err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		return
	}

	first := time.Now().UTC().Truncate(*interval).Add(-time.Duration(*points) * *interval)
	if *start != "" {
		first, err = time.Parse(time.RFC3339, *start)
		if err != nil {
			logger.Fatal("Invalid -start", zap.Error(err))
		}
	}

	sim := NewSimulator(SimulatorConfig{
		Devices:       *devices,
		DevicePrefix:  *prefix,
		Points:        *points,
		Start:         first,
		Interval:      *interval,
		Unit:          *unit,
		BaseLoad:      *baseLoad,
		Noise:         *noise,
		OutlierRate:   *outlierRate,
		OutlierFactor: *outlierFactor,
		MalformedRate: *malformedRate,
		Seed:          *seed,
	}, logger)

	var w io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			logger.Fatal("Failed to create output file", zap.Error(err))
		}
		defer f.Close()
		w = f
	}

	if _, err := sim.Write(w); err != nil {
		logger.Fatal("Failed to write readings", zap.Error(err))
	}
}

// printToken signs a token with the server's jwt settings, read from the
// same config sources the server uses.
func printToken(userID string, role domain.Role, logger *zap.Logger) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not configured")
	}

	token, err := auth.NewJWTService(cfg.JWT, nil, logger).GenerateToken(domain.Caller{UserID: userID, Role: role})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
