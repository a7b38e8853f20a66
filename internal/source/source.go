package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"roadsense/go-hub-server/internal/model"
)

// ErrNotOpen is returned when Read is called before Open or after Close.
var ErrNotOpen = errors.New("source not open")

// MalformedRecordError reports a row that could not be decoded. The cursor
// of the affected stream stays on the bad row; callers decide whether to
// retry or call Skip.
type MalformedRecordError struct {
	Stream string
	Row    int
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record at row %d: %v", e.Stream, e.Row, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// stream is an in-memory arena of raw CSV rows with a wrapping cursor.
// The header row is dropped once at load, so restarting is a cursor reset.
type stream struct {
	name   string
	rows   [][]string
	cursor int
}

func loadStream(name, path string) (*stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s stream: %w", name, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s stream %s has no data rows", name, path)
	}

	return &stream{name: name, rows: rows[1:]}, nil
}

func (s *stream) current() []string { return s.rows[s.cursor] }

func (s *stream) advance() {
	s.cursor++
	if s.cursor >= len(s.rows) {
		s.cursor = 0
	}
}

// CyclicSource reads three correlated sensor streams, restarting each one
// from its first data row when exhausted. Streams advance independently,
// so streams of different lengths drift apart once the shortest wraps;
// readings are paired by read order, not by original row correlation.
// Not safe for concurrent use; each driver loop owns its own instance.
type CyclicSource struct {
	accelPath   string
	gpsPath     string
	parkingPath string
	userID      int64

	accel   *stream
	gps     *stream
	parking *stream
	bad     *stream
}

// New configures a source over the three sensor CSV files for one vehicle.
func New(accelPath, gpsPath, parkingPath string, userID int64) *CyclicSource {
	return &CyclicSource{
		accelPath:   accelPath,
		gpsPath:     gpsPath,
		parkingPath: parkingPath,
		userID:      userID,
	}
}

// Open loads all three streams into memory, skipping each header row.
func (s *CyclicSource) Open() error {
	accel, err := loadStream("accelerometer", s.accelPath)
	if err != nil {
		return err
	}
	gps, err := loadStream("gps", s.gpsPath)
	if err != nil {
		return err
	}
	parking, err := loadStream("parking", s.parkingPath)
	if err != nil {
		return err
	}

	s.accel, s.gps, s.parking = accel, gps, parking
	s.bad = nil
	return nil
}

// Close releases the stream arenas. Read fails with ErrNotOpen afterwards.
func (s *CyclicSource) Close() error {
	s.accel, s.gps, s.parking, s.bad = nil, nil, nil, nil
	return nil
}

// Read returns one aggregated reading, advancing each stream by one row.
// A stream's cursor only advances when its row decoded successfully.
func (s *CyclicSource) Read() (model.AggregatedReading, error) {
	if s.accel == nil || s.gps == nil || s.parking == nil {
		return model.AggregatedReading{}, ErrNotOpen
	}

	accel, err := s.readAccelerometer()
	if err != nil {
		return model.AggregatedReading{}, err
	}
	gps, err := s.readGps()
	if err != nil {
		return model.AggregatedReading{}, err
	}
	parking, err := s.readParking()
	if err != nil {
		return model.AggregatedReading{}, err
	}

	return model.AggregatedReading{
		Accelerometer: accel,
		Gps:           gps,
		Parking:       parking,
		Timestamp:     time.Now().UTC(),
		UserID:        s.userID,
	}, nil
}

// Skip advances past the row that caused the most recent
// MalformedRecordError. It is a no-op when no bad row is pending.
func (s *CyclicSource) Skip() {
	if s.bad != nil {
		s.bad.advance()
		s.bad = nil
	}
}

func (s *CyclicSource) readAccelerometer() (model.AccelerometerSample, error) {
	row := s.accel.current()
	if len(row) != 3 {
		return model.AccelerometerSample{}, s.malformed(s.accel, fmt.Errorf("expected 3 fields, got %d", len(row)))
	}

	var vals [3]int
	for i, field := range row {
		v, err := strconv.Atoi(field)
		if err != nil {
			return model.AccelerometerSample{}, s.malformed(s.accel, fmt.Errorf("field %q: %w", field, err))
		}
		vals[i] = v
	}

	s.accel.advance()
	return model.AccelerometerSample{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func (s *CyclicSource) readGps() (model.GpsSample, error) {
	row := s.gps.current()
	if len(row) != 2 {
		return model.GpsSample{}, s.malformed(s.gps, fmt.Errorf("expected 2 fields, got %d", len(row)))
	}

	lon, err := strconv.ParseFloat(row[0], 64)
	if err != nil {
		return model.GpsSample{}, s.malformed(s.gps, fmt.Errorf("field %q: %w", row[0], err))
	}
	lat, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return model.GpsSample{}, s.malformed(s.gps, fmt.Errorf("field %q: %w", row[1], err))
	}

	s.gps.advance()
	return model.GpsSample{Longitude: lon, Latitude: lat}, nil
}

func (s *CyclicSource) readParking() (model.ParkingSample, error) {
	row := s.parking.current()
	if len(row) != 3 {
		return model.ParkingSample{}, s.malformed(s.parking, fmt.Errorf("expected 3 fields, got %d", len(row)))
	}

	var vals [3]float64
	for i, field := range row {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return model.ParkingSample{}, s.malformed(s.parking, fmt.Errorf("field %q: %w", field, err))
		}
		vals[i] = v
	}

	s.parking.advance()
	return model.ParkingSample{
		EmptyCount: int(vals[0]),
		Gps:        model.GpsSample{Longitude: vals[1], Latitude: vals[2]},
	}, nil
}

func (s *CyclicSource) malformed(st *stream, err error) *MalformedRecordError {
	s.bad = st
	return &MalformedRecordError{Stream: st.name, Row: st.cursor + 1, Err: err}
}
