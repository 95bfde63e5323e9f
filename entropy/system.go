package entropy

import (
	"os"
	"runtime"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"

	"github.com/safing/pwgen/log"
)

// systemSample holds volatile system statistics. None of the values is
// secret; their combination and timing is hard to predict.
type systemSample struct {
	Time        int64   `cbor:"1,keyasint"`
	CPUUser     float64 `cbor:"2,keyasint,omitempty"`
	CPUSystem   float64 `cbor:"3,keyasint,omitempty"`
	CPUIdle     float64 `cbor:"4,keyasint,omitempty"`
	CPUIowait   float64 `cbor:"5,keyasint,omitempty"`
	MemUsed     uint64  `cbor:"6,keyasint,omitempty"`
	MemFree     uint64  `cbor:"7,keyasint,omitempty"`
	MemCached   uint64  `cbor:"8,keyasint,omitempty"`
	Load1       float64 `cbor:"9,keyasint,omitempty"`
	DiskFree    uint64  `cbor:"10,keyasint,omitempty"`
	ProcRSS     uint64  `cbor:"11,keyasint,omitempty"`
	ProcUser    float64 `cbor:"12,keyasint,omitempty"`
	HeapAlloc   uint64  `cbor:"13,keyasint"`
	NumGC       uint32  `cbor:"14,keyasint"`
	Goroutines  int     `cbor:"15,keyasint"`
	ProcIOCount uint64  `cbor:"16,keyasint,omitempty"`
}

// SystemSampler samples system statistics as an entropy source.
type SystemSampler struct {
	proc    *process.Process
	dataDir string
}

// NewSystemSampler returns a new system sampler. The disk usage is sampled
// for the given directory.
func NewSystemSampler(dataDir string) *SystemSampler {
	s := &SystemSampler{dataDir: dataDir}
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec
	if err != nil {
		log.Debugf("entropy: process stats unavailable: %s", err)
	} else {
		s.proc = proc
	}
	return s
}

// Sample collects the current statistics. Unavailable statistics are left
// empty.
func (s *SystemSampler) Sample() []byte {
	sample := systemSample{
		Time:       time.Now().UnixNano(),
		Goroutines: runtime.NumGoroutine(),
	}

	if times, err := cpu.Times(false); err == nil && len(times) > 0 {
		sample.CPUUser = times[0].User
		sample.CPUSystem = times[0].System
		sample.CPUIdle = times[0].Idle
		sample.CPUIowait = times[0].Iowait
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sample.MemUsed = vm.Used
		sample.MemFree = vm.Free
		sample.MemCached = vm.Cached
	}
	if avg, err := load.Avg(); err == nil {
		sample.Load1 = avg.Load1
	}
	if s.dataDir != "" {
		if usage, err := disk.Usage(s.dataDir); err == nil {
			sample.DiskFree = usage.Free
		}
	}
	if s.proc != nil {
		if memInfo, err := s.proc.MemoryInfo(); err == nil {
			sample.ProcRSS = memInfo.RSS
		}
		if times, err := s.proc.Times(); err == nil {
			sample.ProcUser = times.User
		}
		if ioStats, err := s.proc.IOCounters(); err == nil {
			sample.ProcIOCount = ioStats.ReadCount + ioStats.WriteCount
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sample.HeapAlloc = memStats.HeapAlloc
	sample.NumGC = memStats.NumGC

	data, err := cbor.Marshal(&sample)
	if err != nil {
		// fall back to the timestamp only
		log.Debugf("entropy: failed to encode system sample: %s", err)
		return []byte(time.Now().String())
	}
	return data
}

// AddSystemEntropy samples the system and adds the sample as a system event.
func (m *Manager) AddSystemEntropy(s *SystemSampler) int {
	return m.Add(System, s.Sample())
}
