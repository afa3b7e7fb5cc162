// Command picolog-demo writes a batch of fixed-shape records to a log
// file, reports the durability watermark, then reads the file back.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-picolog/picolog"
	"github.com/go-picolog/picolog/internal/logging"
)

// sample is the fixed-shape record type written by this demo.
type sample struct {
	Seq   uint64
	Value uint64
}

func main() {
	path := flag.String("path", "picolog-demo.bin", "path to the log file")
	count := flag.Int("count", 1000, "number of records to write")
	capacity := flag.Int("capacity", 256, "producer/worker handoff ring capacity")
	flushInterval := flag.Duration("flush-interval", 5*time.Millisecond, "maximum time a non-empty page is held before flushing")
	pollInterval := flag.Duration("poll-interval", 1*time.Millisecond, "worker poll interval")
	flag.Parse()

	logger := logging.NewLogger(logging.DefaultConfig())

	l := picolog.New[sample]().WithWriteConfigOptions(picolog.WriteConfig{
		Path:          *path,
		Capacity:      *capacity,
		FlushInterval: *flushInterval,
		PollInterval:  *pollInterval,
		Logger:        logger,
	})
	if err := l.Start(); err != nil {
		logger.Errorf("start: %v", err)
		os.Exit(1)
	}

	var last uint64
	for i := 0; i < *count; i++ {
		seqID, ok := l.Log(sample{Seq: uint64(i), Value: binary.LittleEndian.Uint64([]byte{byte(i), 0, 0, 0, 0, 0, 0, 0})})
		if !ok {
			logger.Errorf("log: logger not started")
			os.Exit(1)
		}
		last = seqID
	}

	if err := l.Close(); err != nil {
		logger.Errorf("close: %v", err)
		os.Exit(1)
	}

	logger.Infof("wrote %d records, last seq_id=%d, ack=%d", *count, last, l.GetLastFlushedEntry())

	reader := picolog.New[sample]().WithReadConfig(*path)
	records, err := reader.Read()
	if err != nil {
		logger.Errorf("read: %v", err)
		os.Exit(1)
	}
	fmt.Printf("read back %d records\n", len(records))
}
