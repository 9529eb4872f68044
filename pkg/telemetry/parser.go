package telemetry

import (
	"strconv"
	"strings"
)

// Parser converts raw delimited lines into Records. A line that cannot
// be parsed is dropped, never surfaced as an error: one corrupt row
// must not stop a batch.
type Parser struct {
	// MinFields is the minimum field count a line must carry to be
	// accepted. Full-schema jobs use MinFullFields, unit-keyed jobs
	// can accept shorter rows.
	MinFields int

	// DefaultDatasetID is attached to records whose line carries no
	// trailing dataset_id field.
	DefaultDatasetID string
}

// NewParser returns a parser requiring the full 26-field schema.
func NewParser(datasetID string) *Parser {
	return &Parser{MinFields: MinFullFields, DefaultDatasetID: datasetID}
}

// SplitFields splits a raw line on its delimiter. Comma-separated if
// the line contains a comma, otherwise any run of whitespace. Raw
// C-MAPSS drops arrive space-separated with trailing blanks; processed
// warehouse extracts arrive as CSV.
func SplitFields(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.Contains(line, ",") {
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return strings.Fields(line)
}

// Parse converts one line into a Record. The second return is false
// when the line is blank, short, or carries a non-numeric required
// field.
func (p *Parser) Parse(line string) (Record, bool) {
	parts := SplitFields(line)
	if len(parts) < p.MinFields || len(parts) < 2 {
		return Record{}, false
	}

	unit, err := parseIntField(parts[0])
	if err != nil || unit <= 0 {
		return Record{}, false
	}
	cycle, err := parseIntField(parts[1])
	if err != nil || cycle <= 0 {
		return Record{}, false
	}

	rec := Record{
		DatasetID:  p.DefaultDatasetID,
		UnitNumber: unit,
		Cycle:      cycle,
	}

	if len(parts) >= MinFullFields {
		for i := 0; i < NumSettings; i++ {
			v, err := strconv.ParseFloat(parts[2+i], 64)
			if err != nil {
				return Record{}, false
			}
			rec.Settings[i] = v
		}
		for i := 0; i < NumSensors; i++ {
			v, err := strconv.ParseFloat(parts[2+NumSettings+i], 64)
			if err != nil {
				return Record{}, false
			}
			rec.Sensors[i] = v
		}
		// Optional trailing fields: dataset_id, dataset_type.
		if len(parts) > MinFullFields && parts[MinFullFields] != "" {
			if _, err := strconv.ParseFloat(parts[MinFullFields], 64); err != nil {
				rec.DatasetID = parts[MinFullFields]
			}
		}
	}

	return rec, true
}

// ParseUnitCycle extracts only the unit number and cycle from a line.
// Used by unit-keyed jobs that do not need the sensor columns.
func ParseUnitCycle(line string) (unitNumber, cycle int, ok bool) {
	parts := SplitFields(line)
	if len(parts) < 2 {
		return 0, 0, false
	}
	unit, err := parseIntField(parts[0])
	if err != nil || unit <= 0 {
		return 0, 0, false
	}
	c, err := parseIntField(parts[1])
	if err != nil || c <= 0 {
		return 0, 0, false
	}
	return unit, c, true
}

// parseIntField accepts both "12" and "12.0", which show up in
// CSV extracts written by float-typed warehouse columns.
func parseIntField(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
