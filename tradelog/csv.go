package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
)

var csvHeader = []string{"Timestamp", "Action", "Wallet", "Token", "Amount (SOL)", "Reason"}

// CSVSink appends entries to a CSV file, writing the header only when the
// file is created empty.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat trade log %s: %w", path, err)
	}

	s := &CSVSink{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := s.w.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write trade log header: %w", err)
		}
		s.w.Flush()
	}
	return s, nil
}

func (s *CSVSink) Record(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := []string{
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		string(entry.Action),
		entry.Wallet,
		entry.Token,
		strconv.FormatFloat(entry.AmountSOL, 'f', -1, 64),
		entry.Reason,
	}
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("write trade log entry: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}
