package session

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Environment keys shared by the record file, dbus-launch output and the
// environment handed to child processes.
const (
	EnvAddress = "DBUS_SESSION_BUS_ADDRESS"
	EnvPID     = "DBUS_SESSION_BUS_PID"
)

// Handle identifies a running session bus.
type Handle struct {
	Address string
	PID     int
}

// Environ returns the handle as KEY=VALUE pairs for a child environment.
func (h Handle) Environ() []string {
	return []string{
		EnvAddress + "=" + h.Address,
		EnvPID + "=" + strconv.Itoa(h.PID),
	}
}

// complete reports whether both fields are set.
func (h Handle) complete() bool {
	return h.Address != "" && h.PID > 0
}

// ReadRecord loads a handle from the record file.
// A missing, unreadable or incomplete file yields ok == false.
func ReadRecord(path string) (h Handle, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Handle{}, false
	}

	h = parseAssignments(data)
	return h, h.complete()
}

// WriteRecord stores h at path, replacing any previous record atomically.
func WriteRecord(path string, h Handle) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, kv := range h.Environ() {
		buf.WriteString(kv)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write session record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// ParseLaunchOutput extracts the handle from dbus-launch --sh-syntax output:
//
//	DBUS_SESSION_BUS_ADDRESS='unix:path=/tmp/dbus-XXXX,guid=...';
//	export DBUS_SESSION_BUS_ADDRESS;
//	DBUS_SESSION_BUS_PID=1234;
func ParseLaunchOutput(out []byte) (Handle, error) {
	h := parseAssignments(out)
	if h.Address == "" {
		return h, fmt.Errorf("%s missing from launch output", EnvAddress)
	}
	if h.PID <= 0 {
		return h, fmt.Errorf("%s missing from launch output", EnvPID)
	}
	return h, nil
}

// parseAssignments reads KEY=VALUE lines, tolerating shell quoting and
// trailing semicolons. Unknown lines are ignored.
func parseAssignments(data []byte) Handle {
	var h Handle
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "';\"")

		switch key {
		case EnvAddress:
			h.Address = value
		case EnvPID:
			if pid, err := strconv.Atoi(value); err == nil {
				h.PID = pid
			}
		}
	}
	return h
}
