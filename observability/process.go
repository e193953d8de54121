// Package observability samples the health of the running server process.
package observability

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is one sample of the server process.
type ProcessStats struct {
	PID        int32
	Status     string
	RSSBytes   uint64
	CPUPercent float64
	Uptime     time.Duration
}

// ProcessSampler reads stats of the current process through gopsutil.
type ProcessSampler struct {
	process   *process.Process
	startedAt time.Time
}

func NewProcessSampler() (*ProcessSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessSampler{process: p, startedAt: time.Now()}, nil
}

func (s *ProcessSampler) Sample() (ProcessStats, error) {
	memInfo, err := s.process.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := s.process.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	status, err := s.process.Status()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{
		PID:        s.process.Pid,
		Status:     status,
		RSSBytes:   memInfo.RSS,
		CPUPercent: cpuPercent,
		Uptime:     time.Since(s.startedAt),
	}, nil
}

func (s *ProcessSampler) StartedAt() time.Time {
	return s.startedAt
}
