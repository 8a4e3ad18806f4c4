//go:build !windows

package debug

import (
	"bytes"
	"errors"
	"os"
	"strconv"
)

var errNoProcStatus = errors.New("VmRSS not reported")

// residentSetSize reads VmRSS from /proc. Platforms without procfs report an error.
func residentSetSize() (uint64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, err
	}
	return parseVmRSS(data)
}

func parseVmRSS(status []byte) (uint64, error) {
	for _, line := range bytes.Split(status, []byte("\n")) {
		rest, ok := bytes.CutPrefix(line, []byte("VmRSS:"))
		if !ok {
			continue
		}
		fields := bytes.Fields(rest)
		if len(fields) == 0 {
			break
		}
		kb, err := strconv.ParseUint(string(fields[0]), 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	return 0, errNoProcStatus
}
