package mapreduce

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DefaultPartitionSize is the number of lines per map partition.
const DefaultPartitionSize = 4096

// PartitionLines reads a line stream into fixed-size partitions for
// the map phase. Partition boundaries carry no meaning beyond map-task
// granularity; any split of the same lines reduces to the same output.
func PartitionLines(r io.Reader, partitionSize int) ([][]string, error) {
	if partitionSize <= 0 {
		partitionSize = DefaultPartitionSize
	}

	var partitions [][]string
	var current []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		current = append(current, scanner.Text())
		if len(current) >= partitionSize {
			partitions = append(partitions, current)
			current = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(current) > 0 {
		partitions = append(partitions, current)
	}
	return partitions, nil
}

// PartitionFile partitions a file on disk.
func PartitionFile(path string, partitionSize int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return PartitionLines(f, partitionSize)
}
