package receiver

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

// Ack is written back to the agent once its report has been stored
const Ack = "ALERTE_RECUE"

// MinFields is the number of '|' separated fields a report must carry
const MinFields = 6

const fieldSeparator = "|"

var (
	ErrMalformedReport = errors.New("malformed report")
	ErrInvalidValue    = errors.New("invalid metric value")
)

// Report is the decoded part of an ingestion line.
// Only the first metric pair is decoded; the remaining fields are checked for presence only.
type Report struct {
	AgentID    string
	MetricType string
	Value      float64
}

// ParseReport decodes a line of the form AGENT_ID|TYPE|VALUE|f4|f5|f6[|...]
func ParseReport(line string) (Report, error) {
	fields := strings.Split(line, fieldSeparator)

	// Trailing empty fields do not count towards the minimum
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	if len(fields) < MinFields {
		return Report{}, fmt.Errorf("%w: expected at least %d fields, got %d", ErrMalformedReport, MinFields, len(fields))
	}

	value, err := parseValue(fields[2])
	if err != nil {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidValue, fields[2])
	}

	return Report{
		AgentID:    fields[0],
		MetricType: fields[1],
		Value:      value,
	}, nil
}

// parseValue rejects NaN. Out of range magnitudes such as 1e400 saturate to ±Inf.
func parseValue(field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, err
		}
	}
	if math.IsNaN(value) {
		return 0, ErrInvalidValue
	}
	return value, nil
}

// Severity classifies the report value
func (r Report) Severity() models.Severity {
	return models.ClassifySeverity(r.Value)
}

// Alert builds the alert raised by this report
func (r Report) Alert() models.Alert {
	message := fmt.Sprintf("[%s] threshold exceeded: %s%%", r.MetricType, strconv.FormatFloat(r.Value, 'f', -1, 64))
	return models.NewAlert(r.AgentID, message, r.Severity())
}

// Sample builds a metrics sample carrying the decoded value in the slot
// matching its metric type. Unknown types yield a sample with all usages zero.
func (r Report) Sample() models.MetricsSample {
	var cpu, memory, disk float64

	switch strings.ToUpper(strings.TrimSpace(r.MetricType)) {
	case "CPU":
		cpu = r.Value
	case "MEM", "MEMORY", "RAM":
		memory = r.Value
	case "DISK":
		disk = r.Value
	}

	return models.NewMetricsSample(r.AgentID, cpu, memory, disk)
}

// Reading is one metric type/value pair of an outgoing report
type Reading struct {
	Type  string
	Value float64
}

// EncodeReport builds an ingestion line. The listener only decodes the first reading.
func EncodeReport(agentID string, readings ...Reading) string {
	var b strings.Builder
	b.WriteString(agentID)
	for _, r := range readings {
		b.WriteString(fieldSeparator)
		b.WriteString(r.Type)
		b.WriteString(fieldSeparator)
		b.WriteString(strconv.FormatFloat(r.Value, 'f', 1, 64))
	}
	return b.String()
}
